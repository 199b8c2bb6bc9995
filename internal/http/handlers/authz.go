package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/services"
)

const (
	// SessionCookie carries the anonymous session id that owns a guest cart.
	SessionCookie = "sid"

	localToken = "jwt"
	localRole  = "role"
)

// OptionalAuth verifies a bearer access token when one is sent and stores the
// user id and role in Locals. Requests without an Authorization header pass
// through as guests; a bad token is rejected with 401.
func OptionalAuth(secret []byte) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    secret,
		SigningMethod: "HS256",
		ContextKey:    localToken,
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			tok, _ := c.Locals(localToken).(*jwt.Token)
			if tok == nil {
				return unauthorized(c, "invalid token")
			}
			claims, _ := tok.Claims.(jwt.MapClaims)
			sub, _ := claims["sub"].(string)
			typ, _ := claims["typ"].(string)
			if sub == "" || typ != services.TokenAccess {
				return unauthorized(c, "invalid token")
			}
			role, _ := claims["role"].(string)
			c.Locals(applog.LocalUserID, sub)
			c.Locals(localRole, role)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c, err.Error())
		},
	})
}

func unauthorized(c *fiber.Ctx, reason string) error {
	applog.Security(c, "auth.token.reject", map[string]any{"reason": reason})
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
}

// RequireUser rejects guests. Mount it after OptionalAuth.
func RequireUser(c *fiber.Ctx) error {
	if userID(c) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
	}
	return c.Next()
}

// RequireAdmin rejects guests and non-admin users. Mount it after OptionalAuth.
func RequireAdmin(c *fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
	}
	if role, _ := c.Locals(localRole).(string); role != domain.RoleAdmin {
		applog.Security(c, "access.denied.admin", map[string]any{"user_id": uid})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	}
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals(applog.LocalUserID).(string)
	return uid
}

func isAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(string)
	return role == domain.RoleAdmin
}

// ensureSID returns the session id, issuing a new cookie when missing.
func ensureSID(c *fiber.Ctx) string {
	sid := strings.TrimSpace(c.Cookies(SessionCookie))
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false, // enable behind TLS
		})
	}
	return sid
}

// owner resolves whose cart a request addresses. Guests get a session cookie
// on demand when create is true.
func owner(c *fiber.Ctx, create bool) domain.Owner {
	sid := c.Cookies(SessionCookie)
	if userID(c) == "" && create {
		sid = ensureSID(c)
	}
	o, _ := domain.ResolveOwner(userID(c), sid)
	return o
}

func viewer(c *fiber.Ctx) services.Viewer {
	return services.Viewer{UserID: userID(c), SessionID: c.Cookies(SessionCookie), Admin: isAdmin(c)}
}
