package handlers

import (
	"autospa/internal/log"
	"autospa/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cats)
}

// Create is admin only.
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.category.create", map[string]any{"category_id": cat.ID, "slug": cat.Slug})
	return c.Status(fiber.StatusCreated).JSON(cat)
}

// Update is admin only.
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	cat, err := h.Catalog.UpdateCategory(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.category.update", map[string]any{"category_id": cat.ID, "slug": cat.Slug})
	return c.JSON(cat)
}
