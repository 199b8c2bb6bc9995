package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

type InventoryRepo struct{ db sqlx.ExtContext }

func NewInventoryRepo(db sqlx.ExtContext) *InventoryRepo { return &InventoryRepo{db: db} }

// InventoryRow is one stock counter as listed on the admin inventory page:
// a product without variants, or a single variant.
type InventoryRow struct {
	ProductID   string `db:"product_id" json:"productId"`
	VariantID   string `db:"variant_id" json:"variantId,omitempty"`
	SKU         string `db:"sku" json:"sku"`
	Name        string `db:"name" json:"name"`
	VariantName string `db:"variant_name" json:"variantName,omitempty"`
	Status      string `db:"status" json:"status"`
	Stock       int    `db:"stock" json:"stock"`
}

const inventoryQuery = `
	SELECT product_id, variant_id, sku, name, variant_name, status, stock FROM (
		SELECT p.id AS product_id, '' AS variant_id, p.sku, p.name, '' AS variant_name, p.status, p.stock
		FROM products p
		WHERE NOT EXISTS (SELECT 1 FROM product_variants v WHERE v.product_id = p.id)
		UNION ALL
		SELECT p.id, v.id, v.sku, p.name, v.name, p.status, v.stock
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
	) inv`

// ListAll returns every stock counter (for /admin/inventory).
func (r *InventoryRepo) ListAll(ctx context.Context) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := sqlx.SelectContext(ctx, r.db, &rows, inventoryQuery+` ORDER BY name, variant_name`)
	return rows, err
}

// LowStock returns counters at or below threshold, emptiest first.
func (r *InventoryRepo) LowStock(ctx context.Context, threshold int) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := sqlx.SelectContext(ctx, r.db, &rows,
		r.db.Rebind(inventoryQuery+` WHERE stock <= ? ORDER BY stock, name, variant_name`), threshold)
	return rows, err
}

// Qty returns the current stock of a target.
func (r *InventoryRepo) Qty(ctx context.Context, t domain.StockTarget) (int, error) {
	var qty int
	var err error
	if t.IsVariant() {
		err = sqlx.GetContext(ctx, r.db, &qty,
			r.db.Rebind(`SELECT stock FROM product_variants WHERE id = ? AND product_id = ?`), t.VariantID, t.ProductID)
		return qty, notFound(err, "variant", t.VariantID)
	}
	err = sqlx.GetContext(ctx, r.db, &qty, r.db.Rebind(`SELECT stock FROM products WHERE id = ?`), t.ProductID)
	return qty, notFound(err, "product", t.ProductID)
}

// Decrement atomically subtracts by units if enough stock exists. A
// shortfall (or a missing row) yields an insufficient-stock ConflictError.
func (r *InventoryRepo) Decrement(ctx context.Context, t domain.StockTarget, by int) error {
	if by <= 0 {
		return fmt.Errorf("decrement by %d", by)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(r.counterUpdate(t, "stock - ?", "AND stock >= ?")),
		r.counterArgs(t, by, by)...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Conflict(domain.ConflictInsufficientStock, "insufficient stock for %s", t.String())
	}
	return nil
}

// Increment returns by units to a target's stock (order cancellation).
func (r *InventoryRepo) Increment(ctx context.Context, t domain.StockTarget, by int) error {
	if by <= 0 {
		return fmt.Errorf("increment by %d", by)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(r.counterUpdate(t, "stock + ?", "")), r.counterArgs(t, by)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("stock", t.String())
	}
	return nil
}

// Set overwrites a target's stock (admin correction).
func (r *InventoryRepo) Set(ctx context.Context, t domain.StockTarget, qty int) error {
	if qty < 0 {
		return domain.Invalid("stock", "must be zero or more")
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(r.counterUpdate(t, "?", "")), r.counterArgs(t, qty)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("stock", t.String())
	}
	return nil
}

func (r *InventoryRepo) counterUpdate(t domain.StockTarget, expr, guard string) string {
	if t.IsVariant() {
		return `UPDATE product_variants SET stock = ` + expr + `, updated_at = ?
			WHERE id = ? AND product_id = ? ` + guard
	}
	return `UPDATE products SET stock = ` + expr + `, updated_at = ? WHERE id = ? ` + guard
}

// counterArgs orders the bind values to match counterUpdate: the new value,
// the timestamp, the keys, then any guard values.
func (r *InventoryRepo) counterArgs(t domain.StockTarget, value int, guard ...int) []any {
	args := []any{value, now()}
	if t.IsVariant() {
		args = append(args, t.VariantID, t.ProductID)
	} else {
		args = append(args, t.ProductID)
	}
	for _, g := range guard {
		args = append(args, g)
	}
	return args
}
