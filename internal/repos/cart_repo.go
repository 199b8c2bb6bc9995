package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

var errNoOwner = errors.New("cart owner is required")

type CartRepo struct{ db sqlx.ExtContext }

func NewCartRepo(db sqlx.ExtContext) *CartRepo { return &CartRepo{db: db} }

// CartViewRow is a cart line joined with its current catalog data. Product
// columns are empty when the product no longer exists.
type CartViewRow struct {
	LineID        string `db:"line_id"`
	ProductID     string `db:"product_id"`
	VariantID     string `db:"variant_id"`
	Qty           int    `db:"qty"`
	SKU           string `db:"sku"`
	Slug          string `db:"slug"`
	Name          string `db:"name"`
	Status        string `db:"status"`
	BasePrice     int64  `db:"base_price"`
	ProductStock  int    `db:"product_stock"`
	VariantName   string `db:"variant_name"`
	PriceModifier int64  `db:"price_modifier"`
	VariantStock  int    `db:"variant_stock"`
	VariantFound  bool   `db:"variant_found"`
}

const lineCols = `id, owner_kind, owner_id, product_id, variant_id, qty, created_at, updated_at`

func withOwner(lines []domain.CartLine) []domain.CartLine {
	for i := range lines {
		lines[i].Owner = domain.OwnerFrom(lines[i].OwnerKind, lines[i].OwnerID)
	}
	return lines
}

// FindLines returns the owner's lines, oldest first.
func (r *CartRepo) FindLines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	if owner.IsZero() {
		return nil, errNoOwner
	}
	lines := []domain.CartLine{}
	err := sqlx.SelectContext(ctx, r.db, &lines, r.db.Rebind(`
		SELECT `+lineCols+` FROM cart_lines
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY created_at, id`), owner.Kind(), owner.ID())
	return withOwner(lines), err
}

// FindLine returns the owner's line for (product, variant).
func (r *CartRepo) FindLine(ctx context.Context, owner domain.Owner, productID, variantID string) (domain.CartLine, error) {
	var l domain.CartLine
	err := sqlx.GetContext(ctx, r.db, &l, r.db.Rebind(`
		SELECT `+lineCols+` FROM cart_lines
		WHERE owner_kind = ? AND owner_id = ? AND product_id = ? AND variant_id = ?`),
		owner.Kind(), owner.ID(), productID, variantID)
	if err != nil {
		return l, notFound(err, "cart line", productID)
	}
	l.Owner = owner
	return l, nil
}

// View joins the owner's lines with the catalog for display.
func (r *CartRepo) View(ctx context.Context, owner domain.Owner) ([]CartViewRow, error) {
	if owner.IsZero() {
		return nil, errNoOwner
	}
	rows := []CartViewRow{}
	err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(`
		SELECT cl.id AS line_id, cl.product_id, cl.variant_id, cl.qty,
		       COALESCE(p.sku, '') AS sku, COALESCE(p.slug, '') AS slug,
		       COALESCE(p.name, '') AS name, COALESCE(p.status, '') AS status,
		       COALESCE(p.base_price, 0) AS base_price, COALESCE(p.stock, 0) AS product_stock,
		       COALESCE(v.name, '') AS variant_name, COALESCE(v.price_modifier, 0) AS price_modifier,
		       COALESCE(v.stock, 0) AS variant_stock,
		       CASE WHEN v.id IS NULL THEN FALSE ELSE TRUE END AS variant_found
		FROM cart_lines cl
		LEFT JOIN products p ON p.id = cl.product_id
		LEFT JOIN product_variants v ON v.id = cl.variant_id AND v.product_id = cl.product_id
		WHERE cl.owner_kind = ? AND cl.owner_id = ?
		ORDER BY cl.created_at, cl.id`), owner.Kind(), owner.ID())
	return rows, err
}

// Add inserts a line or merges qty into the existing line for the same
// (owner, product, variant).
func (r *CartRepo) Add(ctx context.Context, owner domain.Owner, productID, variantID string, qty int) error {
	if owner.IsZero() {
		return errNoOwner
	}
	ts := now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO cart_lines(id, owner_kind, owner_id, product_id, variant_id, qty, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(owner_kind, owner_id, product_id, variant_id) DO UPDATE
		SET qty = cart_lines.qty + excluded.qty, updated_at = excluded.updated_at`),
		uuid.NewString(), owner.Kind(), owner.ID(), productID, variantID, qty, ts, ts)
	return err
}

// SetQty overwrites the quantity of one of the owner's lines.
func (r *CartRepo) SetQty(ctx context.Context, owner domain.Owner, lineID string, qty int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE cart_lines SET qty = ?, updated_at = ?
		WHERE id = ? AND owner_kind = ? AND owner_id = ?`),
		qty, now(), lineID, owner.Kind(), owner.ID())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("cart line", lineID)
	}
	return nil
}

// DeleteLine removes one of the owner's lines.
func (r *CartRepo) DeleteLine(ctx context.Context, owner domain.Owner, lineID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM cart_lines WHERE id = ? AND owner_kind = ? AND owner_id = ?`),
		lineID, owner.Kind(), owner.ID())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("cart line", lineID)
	}
	return nil
}

// DeleteLines empties the owner's cart.
func (r *CartRepo) DeleteLines(ctx context.Context, owner domain.Owner) (int64, error) {
	if owner.IsZero() {
		return 0, errNoOwner
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM cart_lines WHERE owner_kind = ? AND owner_id = ?`),
		owner.Kind(), owner.ID())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteLinesByID removes the given lines regardless of owner.
func (r *CartRepo) DeleteLinesByID(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM cart_lines WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepOrphans deletes lines that lost their owner key.
func (r *CartRepo) SweepOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM cart_lines WHERE owner_id = '' OR owner_kind NOT IN (?, ?)`),
		domain.OwnerUser, domain.OwnerGuest)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MergeGuestIntoUser moves a guest session's lines into the user's cart,
// summing quantities per (product, variant) and capping them at maxQty. Run
// it inside Store.Atomic.
func (r *CartRepo) MergeGuestIntoUser(ctx context.Context, sessionID, userID string, maxQty int) (int, error) {
	guest := domain.GuestOwner(sessionID)
	user := domain.UserOwner(userID)
	if guest.IsZero() || user.IsZero() {
		return 0, nil
	}
	lines, err := r.FindLines(ctx, guest)
	if err != nil || len(lines) == 0 {
		return 0, err
	}
	existing, err := r.FindLines(ctx, user)
	if err != nil {
		return 0, err
	}
	have := make(map[[2]string]int, len(existing))
	for _, l := range existing {
		have[[2]string{l.ProductID, l.VariantID}] = l.Qty
	}

	ts := now()
	for _, l := range lines {
		qty := have[[2]string{l.ProductID, l.VariantID}] + l.Qty
		if maxQty > 0 && qty > maxQty {
			qty = maxQty
		}
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO cart_lines(id, owner_kind, owner_id, product_id, variant_id, qty, created_at, updated_at)
			VALUES(?,?,?,?,?,?,?,?)
			ON CONFLICT(owner_kind, owner_id, product_id, variant_id) DO UPDATE
			SET qty = excluded.qty, updated_at = excluded.updated_at`),
			uuid.NewString(), user.Kind(), user.ID(), l.ProductID, l.VariantID, qty, l.CreatedAt, ts); err != nil {
			return 0, err
		}
	}
	if _, err := r.DeleteLines(ctx, guest); err != nil {
		return 0, err
	}
	return len(lines), nil
}
