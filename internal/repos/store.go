package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store groups the repositories over one handle: the pool, or a transaction
// inside Atomic.
type Store struct {
	db *sqlx.DB

	Categories *CategoryRepo
	Products   *ProductRepo
	Inventory  *InventoryRepo
	Carts      *CartRepo
	Orders     *OrderRepo
	Users      *UserRepo
}

func NewStore(db *sqlx.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(x sqlx.ExtContext) *Store {
	return &Store{
		Categories: NewCategoryRepo(x),
		Products:   NewProductRepo(x),
		Inventory:  NewInventoryRepo(x),
		Carts:      NewCartRepo(x),
		Orders:     NewOrderRepo(x),
		Users:      NewUserRepo(x),
	}
}

// Atomic runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calling
// Atomic on a transaction-bound store joins the running transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks database connectivity for /healthz.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
