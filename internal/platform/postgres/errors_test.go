package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-notes/internal/platform/postgres"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "notes",
		ColumnName:     "remind_count",
		ConstraintName: "notes_remind_count_check",
	}
}

// rowsResult implements sql.Result.
type rowsResult struct {
	n   int64
	err error
}

func (r rowsResult) LastInsertId() (int64, error) { return 0, r.err }
func (r rowsResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		errIs  error
		errMsg string
	}{
		{name: "no rows", err: sql.ErrNoRows, errIs: store.ErrNotFound, errMsg: "entity not found"},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), errIs: store.ErrNotFound},
		{name: "unique violation", err: pgError("23505"), errIs: store.ErrDuplicate, errMsg: "unique violation"},
		{name: "foreign key violation", err: pgError("23503"), errIs: store.ErrInvalidEntity, errMsg: "foreign key violation (notes_remind_count_check)"},
		{name: "check violation", err: pgError("23514"), errIs: store.ErrInvalidEntity, errMsg: "check constraint violation (notes_remind_count_check)"},
		{name: "not null violation names the column", err: pgError("23502"), errIs: store.ErrInvalidEntity, errMsg: "not null violation (remind_count)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mapped := postgres.MapError(tt.err)
			require.Error(t, mapped)
			assert.ErrorIs(t, mapped, tt.errIs)
			if tt.errMsg != "" {
				assert.Contains(t, mapped.Error(), tt.errMsg)
			}
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.MapError(nil))

	undefinedTable := pgError("42P01")
	assert.Same(t, undefinedTable, postgres.MapError(undefinedTable))

	generic := errors.New("connection reset")
	assert.Equal(t, generic, postgres.MapError(generic))
}

func TestIsCheckConstraintViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsCheckConstraintViolation(pgError("23514")))
	assert.True(t, postgres.IsCheckConstraintViolation(fmt.Errorf("save: %w", pgError("23514"))))
	assert.False(t, postgres.IsCheckConstraintViolation(pgError("23505")))
	assert.False(t, postgres.IsCheckConstraintViolation(errors.New("23514")))
	assert.False(t, postgres.IsCheckConstraintViolation(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   sql.Result
		notFound error
		errIs    error
		wantErr  bool
	}{
		{name: "nil result", result: nil, wantErr: true},
		{name: "zero rows", result: rowsResult{n: 0}, wantErr: true, errIs: store.ErrNotFound},
		{name: "zero rows with note sentinel", result: rowsResult{n: 0}, notFound: store.ErrNoteNotFound, wantErr: true, errIs: store.ErrNoteNotFound},
		{name: "one row", result: rowsResult{n: 1}},
		{name: "driver error", result: rowsResult{err: errors.New("unsupported")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := postgres.CheckRowsAffected(tt.result, tt.notFound)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}
