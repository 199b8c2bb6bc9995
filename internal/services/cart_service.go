package services

import (
	"context"

	"autospa/internal/domain"
	"autospa/internal/pricing"
	"autospa/internal/repos"
	"autospa/internal/validate"
)

type CartService struct {
	store *repos.Store
}

func NewCartService(store *repos.Store) *CartService {
	return &CartService{store: store}
}

// CartLineView is a cart line priced for display. UnitPrice is tax-exclusive
// (base price plus variant modifier); UnitPriceWithTax is what the shopper
// sees.
type CartLineView struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	VariantID        string `json:"variantId,omitempty"`
	Slug             string `json:"slug,omitempty"`
	SKU              string `json:"sku,omitempty"`
	Name             string `json:"name"`
	VariantName      string `json:"variantName,omitempty"`
	Qty              int    `json:"qty"`
	UnitPrice        int64  `json:"unitPrice"`
	UnitPriceWithTax int64  `json:"unitPriceWithTax"`
	LineTotal        int64  `json:"lineTotal"`
	Stock            int    `json:"stock"`
	Available        bool   `json:"available"`
}

type CartView struct {
	Lines    []CartLineView `json:"lines"`
	Count    int            `json:"count"`
	Subtotal int64          `json:"subtotal"`
	Tax      int64          `json:"tax"`
	Total    int64          `json:"total"`
}

func (s *CartService) View(ctx context.Context, owner domain.Owner) (CartView, error) {
	cv := CartView{Lines: []CartLineView{}}
	if owner.IsZero() {
		return cv, nil
	}
	rows, err := s.store.Carts.View(ctx, owner)
	if err != nil {
		return cv, err
	}
	for _, r := range rows {
		lv := CartLineView{
			ID: r.LineID, ProductID: r.ProductID, VariantID: r.VariantID,
			Slug: r.Slug, SKU: r.SKU, Name: r.Name, VariantName: r.VariantName, Qty: r.Qty,
			Stock: r.ProductStock,
		}
		lv.Available = r.Status == domain.ProductActive && (r.VariantID == "" || r.VariantFound)
		if r.VariantID != "" {
			lv.Stock = r.VariantStock
		}
		if lv.Available {
			lv.UnitPrice = pricing.UnitDisplayPrice(r.BasePrice, r.PriceModifier)
			lv.UnitPriceWithTax = pricing.PriceWithTax(lv.UnitPrice)
			lv.LineTotal = lv.UnitPriceWithTax * int64(r.Qty)
			cv.Subtotal += lv.UnitPrice * int64(r.Qty)
			cv.Total += lv.LineTotal
			cv.Count += r.Qty
		}
		cv.Lines = append(cv.Lines, lv)
	}
	// Tax is applied per unit, so the total is the sum of the line totals.
	cv.Tax = cv.Total - cv.Subtotal
	return cv, nil
}

// Add puts qty units of a product (or one of its variants) in the cart,
// merging with an existing line for the same item.
func (s *CartService) Add(ctx context.Context, owner domain.Owner, productID, variantID string, qty int) error {
	if owner.IsZero() {
		return domain.Invalid("session", "a session is required to use the cart")
	}
	if !validate.Qty(qty) {
		return domain.Invalid("qty", "must be between 1 and %d", validate.MaxQty)
	}
	p, err := s.store.Products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive() {
		return domain.NotFound("product", productID)
	}
	available := p.Stock
	if variantID != "" {
		v, err := s.store.Products.GetVariant(ctx, variantID)
		if err != nil {
			return err
		}
		if v.ProductID != p.ID {
			return domain.Invalid("variantId", "variant does not belong to product")
		}
		available = v.Stock
	} else {
		variants, err := s.store.Products.Variants(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(variants) > 0 {
			return domain.Invalid("variantId", "choose an option for %s", p.Name)
		}
	}

	total := qty
	existing, err := s.store.Carts.FindLine(ctx, owner, productID, variantID)
	switch {
	case err == nil:
		total += existing.Qty
	case !domain.IsNotFound(err):
		return err
	}
	if total > validate.MaxQty {
		return domain.Invalid("qty", "at most %d units per item", validate.MaxQty)
	}
	if total > available {
		return domain.Conflict(domain.ConflictInsufficientStock, "only %d unit(s) of %s available", available, p.Name)
	}
	return s.store.Carts.Add(ctx, owner, productID, variantID, qty)
}

func (s *CartService) SetQty(ctx context.Context, owner domain.Owner, lineID string, qty int) error {
	if !validate.Qty(qty) {
		return domain.Invalid("qty", "must be between 1 and %d", validate.MaxQty)
	}
	return s.store.Carts.SetQty(ctx, owner, lineID, qty)
}

func (s *CartService) Remove(ctx context.Context, owner domain.Owner, lineID string) error {
	return s.store.Carts.DeleteLine(ctx, owner, lineID)
}

func (s *CartService) Clear(ctx context.Context, owner domain.Owner) error {
	if owner.IsZero() {
		return nil
	}
	_, err := s.store.Carts.DeleteLines(ctx, owner)
	return err
}

// MergeGuest moves a guest session's cart into the user's cart after login.
func (s *CartService) MergeGuest(ctx context.Context, sessionID, userID string) (int, error) {
	var moved int
	err := s.store.Atomic(ctx, func(tx *repos.Store) error {
		var err error
		moved, err = tx.Carts.MergeGuestIntoUser(ctx, sessionID, userID, validate.MaxQty)
		return err
	})
	return moved, err
}

// SweepOrphans deletes cart lines without an owner key.
func (s *CartService) SweepOrphans(ctx context.Context) (int64, error) {
	return s.store.Carts.SweepOrphans(ctx)
}
