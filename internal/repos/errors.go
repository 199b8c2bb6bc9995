package repos

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"autospa/internal/domain"
)

const pgUniqueViolation = "23505"

// isUniqueViolation recognises unique/primary key violations from both
// supported drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

// notFound maps sql.ErrNoRows onto the domain error; other errors pass through.
func notFound(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(resource, id)
	}
	return err
}

// duplicate maps a unique violation onto a ConflictError with the given
// reason; other errors pass through.
func duplicate(err error, reason domain.ConflictReason, msg string) error {
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	return &domain.ConflictError{Reason: reason, Msg: msg, Err: err}
}
