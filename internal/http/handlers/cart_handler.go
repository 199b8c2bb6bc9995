package handlers

import (
	"autospa/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), owner(c, false))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cv)
}

type addRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var in addRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	if in.Qty == 0 {
		in.Qty = 1
	}
	if in.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId", "field": "productId"})
	}
	o := owner(c, true)
	if err := h.Cart.Add(c.UserContext(), o, in.ProductID, in.VariantID, in.Qty); err != nil {
		return fail(c, err)
	}
	cv, err := h.Cart.View(c.UserContext(), o)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cv)
}

type qtyRequest struct {
	Qty int `json:"qty"`
}

func (h *CartHandler) SetQty(c *fiber.Ctx) error {
	var in qtyRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	o := owner(c, false)
	if err := h.Cart.SetQty(c.UserContext(), o, c.Params("lineId"), in.Qty); err != nil {
		return fail(c, err)
	}
	cv, err := h.Cart.View(c.UserContext(), o)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cv)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	if err := h.Cart.Remove(c.UserContext(), owner(c, false), c.Params("lineId")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Cart.Clear(c.UserContext(), owner(c, false)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
