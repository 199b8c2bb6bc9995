package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autospa/internal/domain"
	applog "autospa/internal/log"
	"autospa/internal/pricing"
	"autospa/internal/repos"
	"autospa/internal/validate"
)

// numberAttempts bounds how often checkout retries after an order number
// collision.
const numberAttempts = 5

// Notifications receives post-commit order events. Implementations must not
// block; notify.Dispatcher queues them.
type Notifications interface {
	OrderPlaced(o domain.Order)
	StatusChanged(o domain.Order, status domain.OrderStatus)
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	RUT   string `json:"rut"`
}

type CheckoutInput struct {
	Contact  Contact                `json:"contact"`
	Shipping domain.ShippingAddress `json:"shipping"`
}

// Viewer is the identity a request acts as.
type Viewer struct {
	UserID    string
	SessionID string
	Admin     bool
}

type OrderService struct {
	store  *repos.Store
	notify Notifications
	prefix string
	now    func() time.Time
}

func NewOrderService(store *repos.Store, n Notifications, prefix string) *OrderService {
	if prefix == "" {
		prefix = "ORD"
	}
	return &OrderService{store: store, notify: n, prefix: prefix, now: time.Now}
}

// Place converts the owner's cart into a pending order. Stale lines are
// removed and the request rejected; otherwise the order, stock decrements and
// cart clearing commit together. The confirmation email is queued after
// commit.
func (s *OrderService) Place(ctx context.Context, owner domain.Owner, in CheckoutInput) (domain.Order, error) {
	if owner.IsZero() {
		return domain.Order{}, domain.Invalid("cart", "cart is empty")
	}
	contact, ship, err := normalizeCheckout(in)
	if err != nil {
		return domain.Order{}, err
	}

	lines, err := s.store.Carts.FindLines(ctx, owner)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.Invalid("cart", "cart is empty")
	}

	priced, stale, err := s.resolveLines(ctx, lines)
	if err != nil {
		return domain.Order{}, err
	}
	if len(stale) > 0 {
		if _, err := s.store.Carts.DeleteLinesByID(ctx, stale); err != nil {
			return domain.Order{}, fmt.Errorf("remove stale cart lines: %w", err)
		}
		return domain.Order{}, domain.Conflict(domain.ConflictStaleCart,
			"%d item(s) in your cart are no longer available and were removed; please review your cart and try again", len(stale))
	}

	var subtotal int64
	items := make([]domain.OrderItem, 0, len(priced))
	for _, p := range priced {
		if p.line.Qty > p.available {
			return domain.Order{}, domain.Conflict(domain.ConflictInsufficientStock,
				"not enough stock for %s (requested %d, available %d)", p.item.Name, p.line.Qty, p.available)
		}
		items = append(items, p.item)
		subtotal += p.item.LineTotal
	}
	totals := pricing.OrderTotals(subtotal)

	ts := repos.Timestamp(s.now())
	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerName:  contact.Name,
		CustomerEmail: contact.Email,
		CustomerRUT:   contact.RUT,
		Shipping:      ship,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		ShippingCost:  totals.Shipping,
		Total:         totals.Total,
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     ts,
		UpdatedAt:     ts,
		Items:         items,
	}
	if uid, ok := owner.UserID(); ok {
		order.UserID = &uid
	} else if sid, ok := owner.SessionID(); ok {
		order.SessionID = sid
	}

	for attempt := 1; ; attempt++ {
		err = s.store.Atomic(ctx, func(tx *repos.Store) error {
			number, err := tx.Orders.NextNumber(ctx, s.prefix, s.now())
			if err != nil {
				return err
			}
			order.Number = number
			if err := tx.Orders.Create(ctx, &order); err != nil {
				return err
			}
			for _, it := range order.Items {
				if err := tx.Inventory.Decrement(ctx, it.Target(), it.Qty); err != nil {
					return err
				}
			}
			_, err = tx.Carts.DeleteLines(ctx, owner)
			return err
		})
		if err == nil || !domain.IsConflict(err, domain.ConflictOrderNumber) || attempt == numberAttempts {
			break
		}
		applog.Warn(nil, "order.number.collision", err, map[string]any{"number": order.Number, "attempt": attempt})
		// The rolled back transaction released the colliding value; consume
		// it outside so the next attempt draws a fresh one.
		if _, berr := s.store.Orders.NextNumber(ctx, s.prefix, s.now()); berr != nil {
			return domain.Order{}, berr
		}
	}
	if err != nil {
		return domain.Order{}, err
	}

	if s.notify != nil {
		s.notify.OrderPlaced(order)
	}
	return order, nil
}

type pricedLine struct {
	line      domain.CartLine
	item      domain.OrderItem
	available int
}

// resolveLines prices each cart line against the current catalog. Lines whose
// product is missing or inactive, or whose variant is missing, are returned
// as stale ids instead.
func (s *OrderService) resolveLines(ctx context.Context, lines []domain.CartLine) ([]pricedLine, []string, error) {
	var out []pricedLine
	var stale []string
	for _, l := range lines {
		p, err := s.store.Products.Get(ctx, l.ProductID)
		if domain.IsNotFound(err) {
			stale = append(stale, l.ID)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if !p.IsActive() {
			stale = append(stale, l.ID)
			continue
		}

		item := domain.OrderItem{ProductID: p.ID, SKU: p.SKU, Name: p.Name, Qty: l.Qty}
		available := p.Stock
		var override *int64
		if l.VariantID != "" {
			v, err := s.store.Products.GetVariant(ctx, l.VariantID)
			if domain.IsNotFound(err) || (err == nil && v.ProductID != p.ID) {
				stale = append(stale, l.ID)
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			item.VariantID, item.VariantName, item.SKU = v.ID, v.Name, v.SKU
			available = v.Stock
			override = v.PriceOverride
		}
		item.UnitPrice = pricing.UnitOrderPrice(p.BasePrice, p.OfferPrice, override)
		item.LineTotal = item.UnitPrice * int64(l.Qty)
		out = append(out, pricedLine{line: l, item: item, available: available})
	}
	return out, stale, nil
}

func normalizeCheckout(in CheckoutInput) (Contact, domain.ShippingAddress, error) {
	var c Contact
	var ok bool
	if c.Name, ok = validate.Name(in.Contact.Name); !ok {
		return c, domain.ShippingAddress{}, domain.Invalid("customerName", "is required")
	}
	if c.Email, ok = validate.Email(in.Contact.Email); !ok {
		return c, domain.ShippingAddress{}, domain.Invalid("customerEmail", "must be a valid email address")
	}
	if in.Contact.RUT != "" {
		r, err := validate.RUT(in.Contact.RUT)
		if err != nil {
			return c, domain.ShippingAddress{}, domain.Invalid("customerRut", "%v", err)
		}
		c.RUT = r
	}

	s := in.Shipping
	var a domain.ShippingAddress
	required := []struct {
		field string
		src   string
		dst   *string
		max   int
	}{
		{"shipping.fullName", s.FullName, &a.FullName, 80},
		{"shipping.street", s.Street, &a.Street, 120},
		{"shipping.number", s.Number, &a.Number, 20},
		{"shipping.commune", s.Commune, &a.Commune, 60},
		{"shipping.region", s.Region, &a.Region, 60},
	}
	for _, f := range required {
		if *f.dst, ok = validate.Text(f.src, f.max); !ok {
			return c, a, domain.Invalid(f.field, "is required")
		}
	}
	if a.Phone, ok = validate.Phone(s.Phone); !ok {
		return c, a, domain.Invalid("shipping.phone", "must be a Chilean phone number")
	}
	optional := []struct {
		field string
		src   string
		dst   *string
		max   int
	}{
		{"shipping.apt", s.Apt, &a.Apt, 40},
		{"shipping.city", s.City, &a.City, 60},
		{"shipping.notes", s.Notes, &a.Notes, 300},
	}
	for _, f := range optional {
		if *f.dst, ok = validate.OptionalText(f.src, f.max); !ok {
			return c, a, domain.Invalid(f.field, "is too long")
		}
	}
	return c, a, nil
}

// Get returns an order the viewer may see. Others get an AuthorizationError.
func (s *OrderService) Get(ctx context.Context, v Viewer, id string) (domain.Order, error) {
	o, err := s.store.Orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !v.Admin && !o.OwnedBy(v.UserID, v.SessionID) {
		return domain.Order{}, domain.Forbidden("order belongs to another customer")
	}
	return o, nil
}

// List returns the viewer's own orders, newest first.
func (s *OrderService) List(ctx context.Context, v Viewer) ([]domain.OrderSummary, error) {
	if v.UserID != "" {
		return s.store.Orders.ListByUser(ctx, v.UserID)
	}
	if v.SessionID != "" {
		return s.store.Orders.ListBySession(ctx, v.SessionID)
	}
	return []domain.OrderSummary{}, nil
}

// ListLatest is the admin order list.
func (s *OrderService) ListLatest(ctx context.Context, status string, limit int) ([]domain.OrderSummary, error) {
	var st domain.OrderStatus
	if status != "" {
		var ok bool
		if st, ok = domain.ParseOrderStatus(status); !ok {
			return nil, domain.Invalid("status", "unknown order status %q", status)
		}
	}
	return s.store.Orders.ListLatest(ctx, st, limit)
}

// Cancel lets a customer cancel their own order while it is still pending.
func (s *OrderService) Cancel(ctx context.Context, v Viewer, id string) (domain.Order, error) {
	o, err := s.Get(ctx, v, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status != domain.OrderPending && !v.Admin {
		return domain.Order{}, domain.Conflict(domain.ConflictTransition, "only pending orders can be cancelled")
	}
	return s.UpdateStatus(ctx, id, domain.OrderCancelled)
}

// UpdateStatus moves an order along its lifecycle. Cancelling returns the
// frozen quantities to stock in the same transaction as the status change;
// the compare-and-set on the previous status makes a second cancel fail
// instead of restoring stock twice.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.Order, error) {
	var updated domain.Order
	err := s.store.Atomic(ctx, func(tx *repos.Store) error {
		o, err := tx.Orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(to) {
			return domain.Conflict(domain.ConflictTransition, "order %s cannot move from %s to %s", o.Number, o.Status, to)
		}
		if err := tx.Orders.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
			return err
		}
		if to == domain.OrderCancelled {
			for _, it := range o.Items {
				err := tx.Inventory.Increment(ctx, it.Target(), it.Qty)
				if domain.IsNotFound(err) {
					// The product or variant was deleted after purchase.
					applog.Warn(nil, "order.restock.skipped", err, map[string]any{"order": o.Number, "sku": it.SKU})
					continue
				}
				if err != nil {
					return err
				}
			}
		}
		o.Status = to
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if s.notify != nil {
		s.notify.StatusChanged(updated, to)
	}
	return updated, nil
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	return s.store.Orders.UpdatePaymentStatus(ctx, id, status)
}

func (s *OrderService) Stats(ctx context.Context) (repos.Stats, error) {
	return s.store.Orders.Stats(ctx)
}
