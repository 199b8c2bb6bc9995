package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/services"
	"autospa/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// Check reports availability of a product or one of its variants.
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	t := domain.StockTarget{ProductID: productID, VariantID: strings.TrimSpace(c.Query("variantId"))}
	if _, ok := validate.ID(t.ProductID); !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid productId"})
	}
	if t.VariantID != "" {
		if _, ok := validate.ID(t.VariantID); !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "variantId"})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid variantId"})
		}
	}
	avail, err := h.Inv.CheckAvailability(c.UserContext(), t)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(avail)
}

// List is the admin inventory sheet; ?low=N limits it to rows at or under N.
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	var (
		rows any
		err  error
	)
	if c.Query("low") != "" {
		rows, err = h.Inv.LowStock(c.UserContext(), c.QueryInt("low", 0))
	} else {
		rows, err = h.Inv.ListAll(c.UserContext())
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

type stockRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Qty       *int   `json:"qty"`
}

// SetStock overwrites the stock counter of a product or variant.
func (h *InventoryHandler) SetStock(c *fiber.Ctx) error {
	var in stockRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	if _, ok := validate.ID(in.ProductID); !ok || in.Qty == nil || *in.Qty < 0 {
		applog.Security(c, "validation.fail", map[string]any{"field": "stock"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	t := domain.StockTarget{ProductID: in.ProductID, VariantID: in.VariantID}
	if err := h.Inv.SetStock(c.UserContext(), t, *in.Qty); err != nil {
		return fail(c, err)
	}
	applog.Audit(c, "admin.inventory.save", map[string]any{"target": t.String(), "qty": *in.Qty})
	return c.SendStatus(fiber.StatusNoContent)
}
