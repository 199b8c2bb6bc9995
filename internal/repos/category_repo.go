package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

type CategoryRepo struct{ db sqlx.ExtContext }

func NewCategoryRepo(db sqlx.ExtContext) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryCols = `id, slug, name, created_at, updated_at`

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := sqlx.SelectContext(ctx, r.db, &out, `SELECT `+categoryCols+` FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(`SELECT `+categoryCols+` FROM categories WHERE id = ?`), id)
	return c, notFound(err, "category", id)
}

func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(`SELECT `+categoryCols+` FROM categories WHERE slug = ?`), slug)
	return c, notFound(err, "category", slug)
}

// SlugExists reports whether slug is taken by a category other than exceptID.
func (r *CategoryRepo) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n,
		r.db.Rebind(`SELECT COUNT(*) FROM categories WHERE slug = ? AND id <> ?`), slug, exceptID)
	return n > 0, err
}

func (r *CategoryRepo) Create(ctx context.Context, c domain.Category) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO categories(id, slug, name, created_at, updated_at) VALUES(?,?,?,?,?)`),
		c.ID, c.Slug, c.Name, c.CreatedAt, c.UpdatedAt)
	return duplicate(err, domain.ConflictDuplicate, "category slug already exists")
}

func (r *CategoryRepo) Update(ctx context.Context, c domain.Category) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE categories SET slug = ?, name = ?, updated_at = ? WHERE id = ?`),
		c.Slug, c.Name, now(), c.ID)
	if err != nil {
		return duplicate(err, domain.ConflictDuplicate, "category slug already exists")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("category", c.ID)
	}
	return nil
}
