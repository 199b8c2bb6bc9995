package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

type ProductRepo struct{ db sqlx.ExtContext }

func NewProductRepo(db sqlx.ExtContext) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, category_id, sku, slug, name, description, base_price, offer_price,
	stock, status, images_json, created_at, updated_at`

const variantCols = `id, product_id, sku, name, price_modifier, price_override, stock,
	created_at, updated_at`

type ProductFilter struct {
	CategoryID      string
	Query           string
	IncludeInactive bool
	Limit           int
	Offset          int
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	return p, notFound(err, "product", id)
}

func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE slug = ?`), slug)
	return p, notFound(err, "product", slug)
}

// List returns one page of products matching f and the total match count.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]domain.Product, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if !f.IncludeInactive {
		where = append(where, "status = ?")
		args = append(args, domain.ProductActive)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(sku) LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%", "%"+q+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(`SELECT COUNT(*) FROM products WHERE `+cond), args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 24
	}
	out := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+productCols+` FROM products
		WHERE `+cond+`
		ORDER BY created_at DESC, name
		LIMIT ? OFFSET ?`), append(args, limit, f.Offset)...)
	return out, total, err
}

// SlugExists reports whether slug is taken by a product other than exceptID.
func (r *ProductRepo) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n,
		r.db.Rebind(`SELECT COUNT(*) FROM products WHERE slug = ? AND id <> ?`), slug, exceptID)
	return n > 0, err
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO products(id, category_id, sku, slug, name, description, base_price, offer_price,
		                     stock, status, images_json, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		p.ID, p.CategoryID, p.SKU, p.Slug, p.Name, p.Description, p.BasePrice, p.OfferPrice,
		p.Stock, p.Status, p.ImagesJSON, p.CreatedAt, p.UpdatedAt)
	return duplicate(err, domain.ConflictDuplicate, "a product with this SKU or slug already exists")
}

// Update rewrites the editable product fields. Stock is owned by InventoryRepo.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE products
		SET category_id = ?, sku = ?, slug = ?, name = ?, description = ?,
		    base_price = ?, offer_price = ?, status = ?, images_json = ?, updated_at = ?
		WHERE id = ?`),
		p.CategoryID, p.SKU, p.Slug, p.Name, p.Description,
		p.BasePrice, p.OfferPrice, p.Status, p.ImagesJSON, now(), p.ID)
	if err != nil {
		return duplicate(err, domain.ConflictDuplicate, "a product with this SKU or slug already exists")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepo) SetStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE products SET status = ?, updated_at = ? WHERE id = ?`),
		status, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", id)
	}
	return nil
}

// Delete removes a product and its variants. Orders keep their snapshots.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM product_variants WHERE product_id = ?`), id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepo) Variants(ctx context.Context, productID string) ([]domain.Variant, error) {
	out := []domain.Variant{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(`
		SELECT `+variantCols+` FROM product_variants WHERE product_id = ? ORDER BY price_modifier, name`), productID)
	return out, err
}

func (r *ProductRepo) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	var v domain.Variant
	err := sqlx.GetContext(ctx, r.db, &v, r.db.Rebind(`SELECT `+variantCols+` FROM product_variants WHERE id = ?`), id)
	return v, notFound(err, "variant", id)
}

func (r *ProductRepo) CreateVariant(ctx context.Context, v domain.Variant) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO product_variants(id, product_id, sku, name, price_modifier, price_override, stock, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)`),
		v.ID, v.ProductID, v.SKU, v.Name, v.PriceModifier, v.PriceOverride, v.Stock, v.CreatedAt, v.UpdatedAt)
	return duplicate(err, domain.ConflictDuplicate, "a variant with this SKU already exists")
}

func (r *ProductRepo) UpdateVariant(ctx context.Context, v domain.Variant) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE product_variants
		SET sku = ?, name = ?, price_modifier = ?, price_override = ?, updated_at = ?
		WHERE id = ? AND product_id = ?`),
		v.SKU, v.Name, v.PriceModifier, v.PriceOverride, now(), v.ID, v.ProductID)
	if err != nil {
		return duplicate(err, domain.ConflictDuplicate, "a variant with this SKU already exists")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("variant", v.ID)
	}
	return nil
}

func (r *ProductRepo) DeleteVariant(ctx context.Context, productID, variantID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM product_variants WHERE id = ? AND product_id = ?`),
		variantID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("variant", variantID)
	}
	return nil
}
