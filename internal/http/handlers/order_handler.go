package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/services"
)

type OrderHandler struct {
	Order *services.OrderService
}

// Place checks out the caller's cart.
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in services.CheckoutInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	o := owner(c, false)
	if o.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart is empty", "field": "cart"})
	}
	order, err := h.Order.Place(c.UserContext(), o, in)
	if err != nil {
		var reason any
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			reason = ce.Reason
		}
		applog.Security(c, "order.place.fail", map[string]any{"owner": o.Kind(), "reason": reason})
		return fail(c, err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id": order.ID,
		"number":   order.Number,
		"total":    order.Total,
		"items":    len(order.Items),
	})
	return c.Status(fiber.StatusCreated).JSON(order)
}

// View shows an order to its owner or an admin. Anyone else gets the same
// 404 as for a missing order.
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id := c.Params("id")
	o, err := h.Order.Get(c.UserContext(), viewer(c), id)
	if domain.IsAuthorization(err) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	if domain.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

// History lists the caller's orders: the user's when logged in, otherwise
// the guest session's.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Order.List(c.UserContext(), viewer(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	o, err := h.Order.Cancel(c.UserContext(), viewer(c), id)
	if domain.IsAuthorization(err) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": id, "op": "cancel"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	if err != nil {
		return fail(c, err)
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": o.ID, "number": o.Number})
	return c.JSON(o)
}
