package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"autospa/internal/domain"
	"autospa/internal/log"
	"autospa/internal/services"
	"autospa/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	u, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "auth.register", map[string]any{"user_id": u.ID})
	return c.Status(fiber.StatusCreated).JSON(u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login issues a token pair. The guest cart of the sid cookie moves into the
// user's cart.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	email, ok := validate.Email(in.Email)
	if !ok || in.Password == "" || len(in.Password) > 64 {
		log.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	u, pair, err := h.Auth.Login(c.UserContext(), email, in.Password, c.Cookies(SessionCookie))
	if err != nil {
		if domain.IsAuthorization(err) {
			log.Security(c, "auth.login.fail", map[string]any{"email": email})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
		}
		return fail(c, err)
	}
	c.Locals(log.LocalUserID, u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"user": u, "tokens": pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var in refreshRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	pair, err := h.Auth.Refresh(c.UserContext(), in.RefreshToken)
	if err != nil {
		if domain.IsAuthorization(err) {
			log.Security(c, "auth.refresh.fail", map[string]any{"reason": err.Error()})
		}
		return fail(c, err)
	}
	return c.JSON(pair)
}

// Logout revokes the user's refresh tokens and drops the session cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	uid := userID(c)
	if err := h.Auth.Logout(c.UserContext(), uid); err != nil {
		return fail(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.Me(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(u)
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var in services.ProfileInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	u, err := h.Auth.UpdateProfile(c.UserContext(), userID(c), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "account.profile.update", nil)
	return c.JSON(u)
}
