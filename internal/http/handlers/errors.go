package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"autospa/internal/domain"
	applog "autospa/internal/log"
)

const msgInternal = "Something went wrong. Please try again."

// fail writes the JSON error response for err. Internal errors are logged and
// never echoed to the client.
func fail(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ce *domain.ConflictError
		ae *domain.AuthorizationError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		applog.Security(c, "validation.fail", map[string]any{"field": ve.Field})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": nf.Error()})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ce.Msg, "reason": ce.Reason})
	case errors.As(err, &ae):
		if ae.Unauthenticated {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ae.Msg})
		}
		applog.Security(c, "access.denied", map[string]any{"reason": ae.Msg})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	case errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError:
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	applog.Error(c, "request.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgInternal})
}

// ErrorHandler is the app-wide fiber error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return fail(c, err)
}

// bind decodes a JSON request body into v.
func bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return domain.Invalid("body", "invalid request body")
	}
	return nil
}
