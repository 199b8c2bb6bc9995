package handlers

import (
	"github.com/gofiber/fiber/v2"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/services"
)

type AdminHandler struct {
	OrderSvc *services.OrderService
	Inv      *services.InventoryService
	Auth     *services.AuthService
}

// GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.OrderSvc.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	low, err := h.Inv.LowStock(c.UserContext(), 0)
	if err != nil {
		return fail(c, err)
	}
	latest, err := h.OrderSvc.ListLatest(c.UserContext(), "", 10)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats, "lowStock": low, "latestOrders": latest})
}

// GET /admin/orders?status=&limit=
func (h *AdminHandler) Orders(c *fiber.Ctx) error {
	ords, err := h.OrderSvc.ListLatest(c.UserContext(), c.Query("status"), c.QueryInt("limit", 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(ords)
}

// GET /admin/orders/:id
func (h *AdminHandler) Order(c *fiber.Ctx) error {
	o, err := h.OrderSvc.Get(c.UserContext(), services.Viewer{UserID: userID(c), Admin: true}, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

type statusRequest struct {
	Status string `json:"status"`
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var in statusRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	id := c.Params("id")
	to, ok := domain.ParseOrderStatus(in.Status)
	if !ok {
		return fail(c, domain.Invalid("status", "unknown order status %q", in.Status))
	}
	o, err := h.OrderSvc.UpdateStatus(c.UserContext(), id, to)
	if err != nil {
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id, "status": to})
		return fail(c, err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": to})
	return c.JSON(o)
}

// POST /admin/orders/:id/payment
func (h *AdminHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	var in statusRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	id := c.Params("id")
	st, ok := domain.ParsePaymentStatus(in.Status)
	if !ok {
		return fail(c, domain.Invalid("status", "unknown payment status %q", in.Status))
	}
	if err := h.OrderSvc.UpdatePaymentStatus(c.UserContext(), id, st); err != nil {
		return fail(c, err)
	}
	applog.Audit(c, "admin.orders.payment", map[string]any{"order_id": id, "payment_status": st})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /admin/users
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	users, err := h.Auth.ListUsers(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(users)
}

// DELETE /admin/users/:id removes an account and its cart; orders are kept.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == userID(c) {
		return fail(c, domain.Invalid("id", "admins cannot delete their own account"))
	}
	if err := h.Auth.DeleteUser(c.UserContext(), id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return fail(c, err)
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
