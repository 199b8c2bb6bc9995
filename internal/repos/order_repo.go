package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

const orderSequence = "order_number"

type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db sqlx.ExtContext) *OrderRepo { return &OrderRepo{db: db} }

// shipCols holds the shipping snapshot columns of an orders row.
type shipCols struct {
	FullName string `db:"ship_full_name"`
	Phone    string `db:"ship_phone"`
	Street   string `db:"ship_street"`
	Number   string `db:"ship_number"`
	Apt      string `db:"ship_apt"`
	Commune  string `db:"ship_commune"`
	City     string `db:"ship_city"`
	Region   string `db:"ship_region"`
	Notes    string `db:"ship_notes"`
}

// orderRow is a scan target only; it is never encoded.
type orderRow struct {
	domain.Order
	shipCols
}

const orderCols = `id, order_number, user_id, session_id, customer_name, customer_email, customer_rut,
	ship_full_name, ship_phone, ship_street, ship_number, ship_apt, ship_commune, ship_city,
	ship_region, ship_notes, subtotal, tax, shipping_cost, total, status, payment_status,
	created_at, updated_at`

const summaryCols = `id, order_number, customer_name, customer_email, total, status, payment_status, created_at`

// NextNumber allocates the next order number, e.g. ORD-20250314-000042. The
// sequence row is locked until the surrounding transaction ends.
func (r *OrderRepo) NextNumber(ctx context.Context, prefix string, at time.Time) (string, error) {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sequences(name, value) VALUES(?, 0) ON CONFLICT(name) DO NOTHING`), orderSequence); err != nil {
		return "", err
	}
	var seq int64
	if err := sqlx.GetContext(ctx, r.db, &seq, r.db.Rebind(`
		UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value`), orderSequence); err != nil {
		return "", fmt.Errorf("order sequence: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, at.Format("20060102"), seq), nil
}

// Create inserts the order header and its item snapshots. A taken order
// number yields a duplicate-order-number ConflictError.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	s := o.Shipping
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO orders(id, order_number, user_id, session_id, customer_name, customer_email, customer_rut,
		                   ship_full_name, ship_phone, ship_street, ship_number, ship_apt, ship_commune,
		                   ship_city, ship_region, ship_notes,
		                   subtotal, tax, shipping_cost, total, status, payment_status, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?, ?,?,?,?,?,?, ?,?,?, ?,?,?,?,?,?,?,?)`),
		o.ID, o.Number, o.UserID, o.SessionID, o.CustomerName, o.CustomerEmail, o.CustomerRUT,
		s.FullName, s.Phone, s.Street, s.Number, s.Apt, s.Commune,
		s.City, s.Region, s.Notes,
		o.Subtotal, o.Tax, o.ShippingCost, o.Total, string(o.Status), string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return duplicate(err, domain.ConflictOrderNumber, "order number "+o.Number+" already taken")
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		it.Position = i + 1
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO order_items(order_id, position, product_id, variant_id, sku, name, variant_name,
			                        qty, unit_price, line_total)
			VALUES(?,?,?,?,?,?,?,?,?,?)`),
			it.OrderID, it.Position, it.ProductID, it.VariantID, it.SKU, it.Name, it.VariantName,
			it.Qty, it.UnitPrice, it.LineTotal); err != nil {
			return fmt.Errorf("order item %d: %w", it.Position, err)
		}
	}
	return nil
}

// FindByID loads an order with its items.
func (r *OrderRepo) FindByID(ctx context.Context, id string) (domain.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id); err != nil {
		return domain.Order{}, notFound(err, "order", id)
	}
	o := row.Order
	o.Shipping = domain.ShippingAddress(row.shipCols)
	o.Items = []domain.OrderItem{}
	if err := sqlx.SelectContext(ctx, r.db, &o.Items, r.db.Rebind(`
		SELECT order_id, position, product_id, variant_id, sku, name, variant_name, qty, unit_price, line_total
		FROM order_items WHERE order_id = ? ORDER BY position`), id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.OrderSummary, error) {
	out := []domain.OrderSummary{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+summaryCols+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`), userID)
	return out, err
}

// ListBySession returns guest orders placed from a session.
func (r *OrderRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.OrderSummary, error) {
	out := []domain.OrderSummary{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+summaryCols+` FROM orders
		WHERE session_id = ? AND user_id IS NULL
		ORDER BY created_at DESC`), sessionID)
	return out, err
}

// ListLatest returns the most recent orders, optionally narrowed to a status.
func (r *OrderRepo) ListLatest(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []domain.OrderSummary{}
	if status != "" {
		err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
			SELECT `+summaryCols+` FROM orders WHERE status = ? ORDER BY created_at DESC LIMIT ?`), string(status), limit)
		return out, err
	}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+summaryCols+` FROM orders ORDER BY created_at DESC LIMIT ?`), limit)
	return out, err
}

// UpdateStatus moves an order from one status to another only if it is still
// in the expected status. A lost race yields an invalid-transition
// ConflictError.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), now(), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflict(domain.ConflictTransition, "order %s is no longer %s", id, from)
	}
	return nil
}

func (r *OrderRepo) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?`), string(status), now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("order", id)
	}
	return nil
}

// Stats is the admin dashboard summary.
type Stats struct {
	Orders   int                        `json:"orders"`
	Revenue  int64                      `json:"revenue"`
	ByStatus map[domain.OrderStatus]int `json:"byStatus"`
}

// Stats counts orders per status. Revenue sums totals of orders that were
// not cancelled.
func (r *OrderRepo) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status domain.OrderStatus `db:"status"`
		N      int                `db:"n"`
		Sum    int64              `db:"total"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT status, COUNT(*) AS n, COALESCE(SUM(total), 0) AS total
		FROM orders GROUP BY status`); err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: map[domain.OrderStatus]int{}}
	for _, row := range rows {
		st.Orders += row.N
		st.ByStatus[row.Status] = row.N
		if row.Status != domain.OrderCancelled {
			st.Revenue += row.Sum
		}
	}
	return st, nil
}
