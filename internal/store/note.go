package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
)

// NoteStore defines persistence of the reminder state owned by a note.
// Version: 1.0
type NoteStore interface {
	// FindDueReminders returns notes with remind_at <= now and
	// remind_count < maxReminders, at most limit of them, in no particular order.
	// Returns an empty slice if nothing is due.
	FindDueReminders(ctx context.Context, now time.Time, maxReminders, limit int) ([]*domain.Note, error)

	// FindByID retrieves a note by its unique ID.
	// Returns ErrNoteNotFound if the note does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Note, error)

	// FindByIDForUpdate is FindByID taking a row lock when the store is bound
	// to a transaction. Outside a transaction it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Note, error)

	// Save persists the note's reminder state (remind_at, remind_count).
	// Returns ErrNoteNotFound if the note does not exist.
	Save(ctx context.Context, note *domain.Note) error

	// InTransaction runs fn with a NoteStore bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	InTransaction(ctx context.Context, fn func(ctx context.Context, notes NoteStore) error) error

	// WithTx returns a new NoteStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) NoteStore
}
