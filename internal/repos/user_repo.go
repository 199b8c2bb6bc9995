package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
)

type UserRepo struct{ db sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, name, phone, rut, password_hash, role, created_at`

func (r *UserRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users(id, email, name, phone, rut, password_hash, role, created_at)
		VALUES(?,?,?,?,?,?,?,?)`),
		u.ID, strings.ToLower(u.Email), u.Name, u.Phone, u.RUT, u.Hash, u.Role, u.CreatedAt)
	return duplicate(err, domain.ConflictDuplicate, "an account with this email already exists")
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER(?)`), email)
	return u, notFound(err, "user", email)
}

func (r *UserRepo) ByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	return u, notFound(err, "user", id)
}

// List returns accounts for the admin user page, newest first.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	err := sqlx.SelectContext(ctx, r.db, &out, `SELECT `+userCols+` FROM users ORDER BY created_at DESC`)
	return out, err
}

// UpdateProfile rewrites the self-service fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET name = ?, phone = ?, rut = ?, updated_at = ? WHERE id = ?`),
		u.Name, u.Phone, u.RUT, now(), u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user", u.ID)
	}
	return nil
}

// SaveRefreshToken records an issued refresh token id.
func (r *UserRepo) SaveRefreshToken(ctx context.Context, jti, userID string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO refresh_tokens(jti, user_id, expires_at, created_at) VALUES(?,?,?,?)`),
		jti, userID, expires.UTC().Format(tsLayout), now())
	return err
}

// ConsumeRefreshToken deletes a live token id and reports whether it existed,
// so each refresh token can be redeemed once.
func (r *UserRepo) ConsumeRefreshToken(ctx context.Context, jti, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM refresh_tokens WHERE jti = ? AND user_id = ? AND expires_at > ?`), jti, userID, now())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RevokeRefreshTokens drops every refresh token of a user (logout).
func (r *UserRepo) RevokeRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM refresh_tokens WHERE user_id = ?`), userID)
	return err
}

// DeleteUserCascade removes the account with its cart and tokens. Orders are
// kept for audit and still carry the user id. Run it inside Store.Atomic.
func (r *UserRepo) DeleteUserCascade(ctx context.Context, userID string) error {
	owner := domain.UserOwner(userID)
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM cart_lines WHERE owner_kind = ? AND owner_id = ?`), owner.Kind(), owner.ID()); err != nil {
		return err
	}
	if err := r.RevokeRefreshTokens(ctx, userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user", userID)
	}
	return nil
}
