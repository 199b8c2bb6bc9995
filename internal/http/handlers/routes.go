package handlers

import "github.com/gofiber/fiber/v2"

// Limits are optional per-route limiters; nil entries are skipped.
type Limits struct {
	Login        fiber.Handler
	Availability fiber.Handler
	Checkout     fiber.Handler
}

func pass(c *fiber.Ctx) error { return c.Next() }

func orPass(h fiber.Handler) fiber.Handler {
	if h == nil {
		return pass
	}
	return h
}

// Mount registers the /api/v1 routes on app.
func (d *Deps) Mount(app fiber.Router, l Limits) {
	api := app.Group("/api/v1", OptionalAuth(d.Auth.AccessSecret()))

	// Auth
	api.Post("/auth/register", d.AuthHandler.Register)
	api.Post("/auth/login", orPass(l.Login), d.AuthHandler.Login)
	api.Post("/auth/refresh", d.AuthHandler.Refresh)
	api.Post("/auth/logout", RequireUser, d.AuthHandler.Logout)
	api.Get("/me", RequireUser, d.AuthHandler.Me)
	api.Put("/me", RequireUser, d.AuthHandler.UpdateProfile)

	// Catalog
	api.Get("/categories", d.CategoryHandler.List)
	api.Get("/products", d.ProductHandler.List)
	api.Get("/products/:key", d.ProductHandler.Detail)
	api.Get("/availability", orPass(l.Availability), d.InventoryHandler.Check)

	// Cart
	api.Get("/cart", d.CartHandler.View)
	api.Post("/cart/items", d.CartHandler.Add)
	api.Patch("/cart/items/:lineId", d.CartHandler.SetQty)
	api.Delete("/cart/items/:lineId", d.CartHandler.Remove)
	api.Delete("/cart", d.CartHandler.Clear)

	// Orders
	api.Post("/orders", orPass(l.Checkout), d.OrderHandler.Place)
	api.Get("/orders", d.OrderHandler.History)
	api.Get("/orders/:id", d.OrderHandler.View)
	api.Post("/orders/:id/cancel", d.OrderHandler.Cancel)

	// Admin
	admin := api.Group("/admin", RequireAdmin)
	admin.Get("/dashboard", d.AdminHandler.Dashboard)
	admin.Get("/orders", d.AdminHandler.Orders)
	admin.Get("/orders/:id", d.AdminHandler.Order)
	admin.Post("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)
	admin.Post("/orders/:id/payment", d.AdminHandler.UpdatePaymentStatus)
	admin.Get("/inventory", d.InventoryHandler.List)
	admin.Put("/inventory", d.InventoryHandler.SetStock)
	admin.Post("/categories", d.CategoryHandler.Create)
	admin.Put("/categories/:id", d.CategoryHandler.Update)
	admin.Post("/products", d.ProductHandler.Create)
	admin.Put("/products/:id", d.ProductHandler.Update)
	admin.Post("/products/:id/active", d.ProductHandler.SetActive)
	admin.Delete("/products/:id", d.ProductHandler.Delete)
	admin.Post("/products/:id/variants", d.ProductHandler.CreateVariant)
	admin.Put("/products/:id/variants/:variantId", d.ProductHandler.UpdateVariant)
	admin.Delete("/products/:id/variants/:variantId", d.ProductHandler.DeleteVariant)
	admin.Get("/users", d.AdminHandler.Users)
	admin.Delete("/users/:id", d.AdminHandler.DeleteUser)
}
