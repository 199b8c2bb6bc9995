package repos

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// tsLayout is fixed-width so timestamps stored as text sort chronologically.
const tsLayout = "2006-01-02T15:04:05.000000Z"

func now() string { return Timestamp(time.Now()) }

// Timestamp formats t the way every table stores it.
func Timestamp(t time.Time) string { return t.UTC().Format(tsLayout) }

// OpenDB opens (and seeds) an SQLite database; ":memory:" is accepted.
func OpenDB(dsn string) (*sqlx.DB, error) {
	return Open(DriverSQLite, dsn, true)
}

// Open connects with the given driver, applies the schema and, when seed is
// set, inserts the demo catalog and accounts.
func Open(driver, dsn string, seed bool) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// SQLite has a single writer, and every ":memory:" connection would
		// otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if seed {
		if err := seedCatalog(db); err != nil {
			return nil, err
		}
		if err := seedUsers(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	if db.DriverName() == DriverSQLite {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			return err
		}
	}
	schema := `
-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);

-- Products (prices are tax-exclusive whole pesos)
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL UNIQUE,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  base_price BIGINT NOT NULL CHECK (base_price >= 0),
  offer_price BIGINT CHECK (offer_price IS NULL OR offer_price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','inactive')),
  images_json TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_products_category   ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_name       ON products(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at);

CREATE TABLE IF NOT EXISTS product_variants(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  price_modifier BIGINT NOT NULL DEFAULT 0,
  price_override BIGINT CHECK (price_override IS NULL OR price_override >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_variants_product ON product_variants(product_id);

-- Cart lines. No foreign key on product_id: checkout must see and clean up
-- lines whose product was removed. owner_id '' marks an orphan.
CREATE TABLE IF NOT EXISTS cart_lines(
  id TEXT PRIMARY KEY,
  owner_kind TEXT NOT NULL DEFAULT '',
  owner_id TEXT NOT NULL DEFAULT '',
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '',
  qty INTEGER NOT NULL CHECK (qty >= 1),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT '',
  UNIQUE (owner_kind, owner_id, product_id, variant_id)
);
CREATE INDEX IF NOT EXISTS idx_cart_lines_owner ON cart_lines(owner_kind, owner_id);

-- Users
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  rut TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('customer','admin')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS refresh_tokens(
  jti TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_at TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id);

-- Orders keep no foreign keys to users or products: they outlive both.
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT,
  session_id TEXT NOT NULL DEFAULT '',
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_rut TEXT NOT NULL DEFAULT '',
  ship_full_name TEXT NOT NULL,
  ship_phone TEXT NOT NULL,
  ship_street TEXT NOT NULL,
  ship_number TEXT NOT NULL,
  ship_apt TEXT NOT NULL DEFAULT '',
  ship_commune TEXT NOT NULL,
  ship_city TEXT NOT NULL DEFAULT '',
  ship_region TEXT NOT NULL,
  ship_notes TEXT NOT NULL DEFAULT '',
  subtotal BIGINT NOT NULL,
  tax BIGINT NOT NULL,
  shipping_cost BIGINT NOT NULL,
  total BIGINT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending'
    CHECK (status IN ('pending','processing','shipped','delivered','cancelled')),
  payment_status TEXT NOT NULL DEFAULT 'pending'
    CHECK (payment_status IN ('pending','paid','failed','refunded')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_orders_user       ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_session    ON orders(session_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  variant_name TEXT NOT NULL DEFAULT '',
  qty INTEGER NOT NULL CHECK (qty >= 1),
  unit_price BIGINT NOT NULL,
  line_total BIGINT NOT NULL,
  PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS sequences(
  name TEXT PRIMARY KEY,
  value BIGINT NOT NULL
);
`
	for _, stmt := range splitStatements(schema) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// splitStatements lets the same DDL run on drivers that refuse multi-statement
// Exec calls.
func splitStatements(schema string) []string {
	var out []string
	for _, raw := range strings.Split(schema, ";") {
		var kept []string
		for _, line := range strings.Split(raw, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}
	return out
}

// seedCatalog inserts the demo catalog. Safe to run on every startup.
func seedCatalog(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	cats := [][2]string{
		{"cat-lavado", "lavado"},
		{"cat-proteccion", "proteccion"},
		{"cat-accesorios", "accesorios"},
	}
	names := map[string]string{"lavado": "Lavado", "proteccion": "Protección", "accesorios": "Accesorios"}
	for _, c := range cats {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO categories(id, slug, name, created_at) VALUES(?,?,?,?)
			ON CONFLICT DO NOTHING`), c[0], c[1], names[c[1]], ts); err != nil {
			return err
		}
	}

	type prod struct {
		id, cat, sku, slug, name, desc string
		base                           int64
		offer                          *int64
		stock                          int
	}
	offer := int64(8990)
	prods := []prod{
		{"p-shampoo-1l", "cat-lavado", "LAV-SHA-1L", "shampoo-ph-neutro-1l", "Shampoo pH Neutro 1L", "Shampoo concentrado de pH neutro, no remueve ceras.", 7990, nil, 40},
		{"p-cera-liquida", "cat-proteccion", "PRO-CER-500", "cera-liquida-premium", "Cera Líquida Premium 500ml", "Cera de carnauba de rápida aplicación.", 12990, nil, 25},
		{"p-sellador", "cat-proteccion", "PRO-SEL-250", "sellador-ceramico", "Sellador Cerámico 250ml", "Protección SiO2 hasta 12 meses.", 24990, nil, 10},
		{"p-microfibra", "cat-accesorios", "ACC-MIC", "pano-microfibra", "Paño Microfibra", "Paño de microfibra sin bordes.", 3490, nil, 0},
		{"p-aplicador", "cat-accesorios", "ACC-APL-2", "aplicador-espuma-x2", "Aplicador de Espuma x2", "Pack de dos aplicadores.", 9990, &offer, 15},
	}
	for _, p := range prods {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO products(id, category_id, sku, slug, name, description, base_price, offer_price, stock, status, images_json, created_at)
			VALUES(?,?,?,?,?,?,?,?,?,'active','[]',?)
			ON CONFLICT DO NOTHING`),
			p.id, p.cat, p.sku, p.slug, p.name, p.desc, p.base, p.offer, p.stock, ts); err != nil {
			return err
		}
	}

	// Microfibre cloths are sold by size; stock lives on the variants.
	variants := []struct {
		id, sku, name string
		modifier      int64
		stock         int
	}{
		{"v-microfibra-40", "ACC-MIC-40", "40x40 cm", 0, 60},
		{"v-microfibra-60", "ACC-MIC-60", "60x90 cm", 2500, 20},
	}
	for _, v := range variants {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO product_variants(id, product_id, sku, name, price_modifier, stock, created_at)
			VALUES(?,?,?,?,?,?,?)
			ON CONFLICT DO NOTHING`), v.id, "p-microfibra", v.sku, v.name, v.modifier, v.stock, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// seedUsers ensures a demo customer and an admin exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	log.Println("[seed] inserting demo accounts")

	users := []struct{ id, email, name, role, rut string }{
		{"u-cliente", "cliente@autospa.cl", "Cliente Demo", "customer", "76086428-5"},
		{"u-admin", "admin@autospa.cl", "Admin", "admin", ""},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users(id, email, name, rut, password_hash, role, created_at)
			VALUES(?,?,?,?,?,?,?)
			ON CONFLICT DO NOTHING`), u.id, u.email, u.name, u.rut, string(hash), u.role, now()); err != nil {
			return err
		}
	}
	return tx.Commit()
}
