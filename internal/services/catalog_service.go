package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"autospa/internal/domain"
	"autospa/internal/pricing"
	"autospa/internal/repos"
	"autospa/internal/slug"
	"autospa/internal/validate"
)

type CatalogService struct {
	store *repos.Store
}

func NewCatalogService(store *repos.Store) *CatalogService {
	return &CatalogService{store: store}
}

// ProductView adds tax-inclusive display prices to a product.
type ProductView struct {
	domain.Product
	Images            []string            `json:"images"`
	PriceWithTax      int64               `json:"priceWithTax"`
	OfferPriceWithTax *int64              `json:"offerPriceWithTax,omitempty"`
	Availability      domain.Availability `json:"availability"`
}

type VariantView struct {
	domain.Variant
	DisplayPrice        int64               `json:"displayPrice"`
	DisplayPriceWithTax int64               `json:"displayPriceWithTax"`
	Availability        domain.Availability `json:"availability"`
}

type ProductDetail struct {
	ProductView
	Variants []VariantView `json:"variants"`
}

type ProductPage struct {
	Items    []ProductView `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

type ProductQuery struct {
	Category string // id or slug
	Q        string
	Page     int
	PageSize int
	Admin    bool
}

func productView(p domain.Product) ProductView {
	v := ProductView{Product: p, Images: []string{}, PriceWithTax: pricing.PriceWithTax(p.BasePrice)}
	if p.OfferPrice != nil {
		o := pricing.PriceWithTax(*p.OfferPrice)
		v.OfferPriceWithTax = &o
	}
	if p.ImagesJSON != "" {
		_ = json.Unmarshal([]byte(p.ImagesJSON), &v.Images)
	}
	v.Availability = availability(p.Stock)
	return v
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.store.Categories.List(ctx)
}

func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 24
	}
	f := repos.ProductFilter{Query: q.Q, IncludeInactive: q.Admin, Limit: q.PageSize, Offset: (q.Page - 1) * q.PageSize}
	if q.Category != "" {
		c, err := s.store.Categories.GetBySlug(ctx, q.Category)
		if domain.IsNotFound(err) {
			c, err = s.store.Categories.Get(ctx, q.Category)
		}
		if err != nil {
			return ProductPage{}, err
		}
		f.CategoryID = c.ID
	}
	products, total, err := s.store.Products.List(ctx, f)
	if err != nil {
		return ProductPage{}, err
	}
	page := ProductPage{Items: make([]ProductView, 0, len(products)), Total: total, Page: q.Page, PageSize: q.PageSize}
	for _, p := range products {
		page.Items = append(page.Items, productView(p))
	}
	return page, nil
}

// GetProduct looks a product up by slug, then by id. Inactive products are
// hidden from shoppers.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string, admin bool) (ProductDetail, error) {
	p, err := s.store.Products.GetBySlug(ctx, idOrSlug)
	if domain.IsNotFound(err) {
		p, err = s.store.Products.Get(ctx, idOrSlug)
	}
	if err != nil {
		return ProductDetail{}, err
	}
	if !p.IsActive() && !admin {
		return ProductDetail{}, domain.NotFound("product", idOrSlug)
	}
	variants, err := s.store.Products.Variants(ctx, p.ID)
	if err != nil {
		return ProductDetail{}, err
	}
	d := ProductDetail{ProductView: productView(p), Variants: make([]VariantView, 0, len(variants))}
	if len(variants) > 0 {
		total := 0
		for _, v := range variants {
			total += v.Stock
		}
		d.Availability = availability(total)
	}
	for _, v := range variants {
		price := pricing.UnitDisplayPrice(p.BasePrice, v.PriceModifier)
		d.Variants = append(d.Variants, VariantView{
			Variant:             v,
			DisplayPrice:        price,
			DisplayPriceWithTax: pricing.PriceWithTax(price),
			Availability:        availability(v.Stock),
		})
	}
	return d, nil
}

// ---------- admin ----------

type CategoryInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	name, ok := validate.Name(in.Name)
	if !ok {
		return domain.Category{}, domain.Invalid("name", "is required")
	}
	sl, err := s.uniqueSlug(ctx, in.Slug, name, "", s.store.Categories.SlugExists)
	if err != nil {
		return domain.Category{}, err
	}
	ts := repos.Timestamp(timeNow())
	c := domain.Category{ID: uuid.NewString(), Slug: sl, Name: name, CreatedAt: ts, UpdatedAt: ts}
	return c, s.store.Categories.Create(ctx, c)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (domain.Category, error) {
	c, err := s.store.Categories.Get(ctx, id)
	if err != nil {
		return c, err
	}
	if in.Name != "" {
		name, ok := validate.Name(in.Name)
		if !ok {
			return c, domain.Invalid("name", "is too long")
		}
		c.Name = name
	}
	if in.Slug != "" {
		if c.Slug, err = s.uniqueSlug(ctx, in.Slug, c.Name, c.ID, s.store.Categories.SlugExists); err != nil {
			return c, err
		}
	}
	return c, s.store.Categories.Update(ctx, c)
}

type ProductInput struct {
	CategoryID  string   `json:"categoryId"`
	SKU         string   `json:"sku"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BasePrice   int64    `json:"basePrice"`
	OfferPrice  *int64   `json:"offerPrice"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
	Active      *bool    `json:"active"`
}

func (s *CatalogService) normalizeProduct(ctx context.Context, in ProductInput, p *domain.Product) error {
	var ok bool
	if p.SKU, ok = validate.SKU(in.SKU); !ok {
		return domain.Invalid("sku", "must be 2-40 letters, digits or dashes")
	}
	if p.Name, ok = validate.Name(in.Name); !ok {
		return domain.Invalid("name", "is required")
	}
	if p.Description, ok = validate.OptionalText(in.Description, 4000); !ok {
		return domain.Invalid("description", "is too long")
	}
	if !validate.Price(in.BasePrice) {
		return domain.Invalid("basePrice", "must be zero or more")
	}
	if in.OfferPrice != nil && (!validate.Price(*in.OfferPrice) || *in.OfferPrice >= in.BasePrice) {
		return domain.Invalid("offerPrice", "must be below the base price")
	}
	p.BasePrice, p.OfferPrice = in.BasePrice, in.OfferPrice
	if in.CategoryID != "" {
		if _, err := s.store.Categories.Get(ctx, in.CategoryID); err != nil {
			if domain.IsNotFound(err) {
				return domain.Invalid("categoryId", "unknown category")
			}
			return err
		}
	}
	p.CategoryID = in.CategoryID
	images := in.Images
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	p.ImagesJSON = string(b)
	if in.Active != nil && !*in.Active {
		p.Status = domain.ProductInactive
	} else if in.Active != nil || p.Status == "" {
		p.Status = domain.ProductActive
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	var p domain.Product
	if err := s.normalizeProduct(ctx, in, &p); err != nil {
		return p, err
	}
	if in.Stock < 0 {
		return p, domain.Invalid("stock", "must be zero or more")
	}
	sl, err := s.uniqueSlug(ctx, in.Slug, p.Name, "", s.store.Products.SlugExists)
	if err != nil {
		return p, err
	}
	ts := repos.Timestamp(timeNow())
	p.ID, p.Slug, p.Stock, p.CreatedAt, p.UpdatedAt = uuid.NewString(), sl, in.Stock, ts, ts
	return p, s.store.Products.Create(ctx, p)
}

// UpdateProduct rewrites a product's catalog fields. Stock changes go through
// InventoryService.SetStock; past orders keep their own snapshots.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	p, err := s.store.Products.Get(ctx, id)
	if err != nil {
		return p, err
	}
	if err := s.normalizeProduct(ctx, in, &p); err != nil {
		return p, err
	}
	if in.Slug != "" {
		if p.Slug, err = s.uniqueSlug(ctx, in.Slug, p.Name, p.ID, s.store.Products.SlugExists); err != nil {
			return p, err
		}
	}
	return p, s.store.Products.Update(ctx, p)
}

func (s *CatalogService) SetProductActive(ctx context.Context, id string, active bool) error {
	status := domain.ProductInactive
	if active {
		status = domain.ProductActive
	}
	return s.store.Products.SetStatus(ctx, id, status)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.store.Atomic(ctx, func(tx *repos.Store) error { return tx.Products.Delete(ctx, id) })
}

type VariantInput struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	PriceModifier int64  `json:"priceModifier"`
	PriceOverride *int64 `json:"priceOverride"`
	Stock         int    `json:"stock"`
}

func normalizeVariant(in VariantInput, v *domain.Variant) error {
	var ok bool
	if v.SKU, ok = validate.SKU(in.SKU); !ok {
		return domain.Invalid("sku", "must be 2-40 letters, digits or dashes")
	}
	if v.Name, ok = validate.Text(in.Name, 60); !ok {
		return domain.Invalid("name", "is required")
	}
	if in.PriceOverride != nil && !validate.Price(*in.PriceOverride) {
		return domain.Invalid("priceOverride", "must be zero or more")
	}
	v.PriceModifier, v.PriceOverride = in.PriceModifier, in.PriceOverride
	return nil
}

func (s *CatalogService) CreateVariant(ctx context.Context, productID string, in VariantInput) (domain.Variant, error) {
	p, err := s.store.Products.Get(ctx, productID)
	if err != nil {
		return domain.Variant{}, err
	}
	v := domain.Variant{ProductID: p.ID}
	if err := normalizeVariant(in, &v); err != nil {
		return v, err
	}
	if p.BasePrice+v.PriceModifier < 0 {
		return v, domain.Invalid("priceModifier", "makes the price negative")
	}
	if in.Stock < 0 {
		return v, domain.Invalid("stock", "must be zero or more")
	}
	ts := repos.Timestamp(timeNow())
	v.ID, v.Stock, v.CreatedAt, v.UpdatedAt = uuid.NewString(), in.Stock, ts, ts
	return v, s.store.Products.CreateVariant(ctx, v)
}

func (s *CatalogService) UpdateVariant(ctx context.Context, productID, variantID string, in VariantInput) (domain.Variant, error) {
	v, err := s.store.Products.GetVariant(ctx, variantID)
	if err != nil {
		return v, err
	}
	if v.ProductID != productID {
		return v, domain.NotFound("variant", variantID)
	}
	if err := normalizeVariant(in, &v); err != nil {
		return v, err
	}
	return v, s.store.Products.UpdateVariant(ctx, v)
}

func (s *CatalogService) DeleteVariant(ctx context.Context, productID, variantID string) error {
	return s.store.Products.DeleteVariant(ctx, productID, variantID)
}

// uniqueSlug slugifies the requested slug (or the name when none was given)
// and resolves collisions with numbered suffixes.
func (s *CatalogService) uniqueSlug(ctx context.Context, requested, name, exceptID string,
	exists func(ctx context.Context, slug, exceptID string) (bool, error)) (string, error) {
	base := slug.Make(strings.TrimSpace(requested))
	if base == "" {
		base = slug.Make(name)
	}
	return slug.Unique(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return exists(ctx, candidate, exceptID)
	})
}
