package handlers

import (
	"strings"

	"autospa/internal/log"
	"autospa/internal/services"
	"autospa/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// List serves the catalog: paginated, optionally by category and keyword.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	q := services.ProductQuery{Page: c.QueryInt("page", 1), PageSize: c.QueryInt("pageSize", 24), Admin: isAdmin(c)}
	if raw := c.Query("q"); strings.TrimSpace(raw) != "" {
		kw, ok := validate.Q(raw)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "q"})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Enter a valid keyword (letters/numbers only)", "field": "q"})
		}
		q.Q = strings.ToLower(kw)
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		cat, ok := validate.ID(raw)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "category"})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category", "field": "category"})
		}
		q.Category = cat
	}
	page, err := h.Catalog.ListProducts(c.UserContext(), q)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// Detail looks a product up by slug or id.
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	key, ok := validate.ID(c.Params("key"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "This item is no longer available"})
	}
	d, err := h.Catalog.GetProduct(c.UserContext(), key, isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(d)
}

// ---------- admin ----------

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.product.create", map[string]any{"product_id": p.ID, "sku": p.SKU})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	p, err := h.Catalog.UpdateProduct(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.product.update", map[string]any{"product_id": p.ID, "sku": p.SKU})
	return c.JSON(p)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *ProductHandler) SetActive(c *fiber.Ctx) error {
	var in activeRequest
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	id := c.Params("id")
	if err := h.Catalog.SetProductActive(c.UserContext(), id, in.Active); err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.product.status", map[string]any{"product_id": id, "active": in.Active})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Catalog.DeleteProduct(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.product.delete", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) CreateVariant(c *fiber.Ctx) error {
	var in services.VariantInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	v, err := h.Catalog.CreateVariant(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.variant.create", map[string]any{"product_id": v.ProductID, "variant_id": v.ID, "sku": v.SKU})
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (h *ProductHandler) UpdateVariant(c *fiber.Ctx) error {
	var in services.VariantInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	v, err := h.Catalog.UpdateVariant(c.UserContext(), c.Params("id"), c.Params("variantId"), in)
	if err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.variant.update", map[string]any{"product_id": v.ProductID, "variant_id": v.ID})
	return c.JSON(v)
}

func (h *ProductHandler) DeleteVariant(c *fiber.Ctx) error {
	pid, vid := c.Params("id"), c.Params("variantId")
	if err := h.Catalog.DeleteVariant(c.UserContext(), pid, vid); err != nil {
		return fail(c, err)
	}
	log.Audit(c, "admin.variant.delete", map[string]any{"product_id": pid, "variant_id": vid})
	return c.SendStatus(fiber.StatusNoContent)
}
