package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-notes/internal/store"
)

// SQLSTATE codes mapped to store errors.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

type pgMapping struct {
	sentinel error
	label    string
	// column reports pgErr.ColumnName instead of ConstraintName
	column bool
}

var pgMappings = map[string]pgMapping{
	uniqueViolationCode:     {sentinel: store.ErrDuplicate, label: "unique violation"},
	foreignKeyViolationCode: {sentinel: store.ErrInvalidEntity, label: "foreign key violation"},
	checkViolationCode:      {sentinel: store.ErrInvalidEntity, label: "check constraint violation"},
	notNullViolationCode:    {sentinel: store.ErrInvalidEntity, label: "not null violation", column: true},
}

// MapError translates driver errors into store errors. sql.ErrNoRows becomes
// store.ErrNotFound and constraint violations become ErrDuplicate or
// ErrInvalidEntity; anything else is returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	m, ok := pgMappings[pgErr.Code]
	if !ok {
		return err
	}
	name := pgErr.ConstraintName
	if m.column {
		name = pgErr.ColumnName
	}
	return fmt.Errorf("%w: %s (%s): %v", m.sentinel, m.label, name, err)
}

// IsCheckConstraintViolation reports whether err is a PostgreSQL check
// constraint violation. The remind_count range check surfaces this way.
func IsCheckConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolationCode
}

// CheckRowsAffected returns notFound (or store.ErrNotFound when notFound is nil)
// if the statement touched no rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n == 0 {
		if notFound == nil {
			return store.ErrNotFound
		}
		return notFound
	}
	return nil
}
