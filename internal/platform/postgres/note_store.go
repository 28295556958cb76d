package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/phrazzld/scry-notes/internal/store"
)

// noteColumns is shared by every query that hydrates a domain.Note.
// alarm_enabled lives on the owning user row.
const noteColumns = `
		n.id, n.user_id, n.title, n.content, n.remind_at, n.remind_count,
		u.alarm_enabled, n.created_at, n.updated_at`

// PostgresNoteStore implements the store.NoteStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNoteStore struct {
	db     store.DBTX
	txs    store.TxStarter
	logger *slog.Logger
}

// NewPostgresNoteStore creates a new PostgreSQL implementation of the NoteStore interface.
// When db can begin transactions (a *sql.DB) the store opens its own in
// InTransaction; when it is a *sql.Tx, InTransaction runs inside it.
// If logger is nil, a default logger will be used.
func NewPostgresNoteStore(db store.DBTX, logger *slog.Logger) *PostgresNoteStore {
	if db == nil {
		// ALLOW-PANIC: constructor precondition
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &PostgresNoteStore{
		db:     db,
		logger: logger.With(slog.String("component", "note_store")),
	}
	if txs, ok := db.(store.TxStarter); ok {
		s.txs = txs
	}
	return s
}

// Ensure PostgresNoteStore implements store.NoteStore interface
var _ store.NoteStore = (*PostgresNoteStore)(nil)

// FindDueReminders implements store.NoteStore.FindDueReminders.
// Notes whose owner disabled alarms are still returned; the service decides
// what to do with them.
func (s *PostgresNoteStore) FindDueReminders(
	ctx context.Context,
	now time.Time,
	maxReminders, limit int,
) ([]*domain.Note, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT` + noteColumns + `
		FROM notes n
		JOIN users u ON u.id = n.user_id
		WHERE n.remind_at IS NOT NULL
		  AND n.remind_at <= $1
		  AND n.remind_count < $2
		ORDER BY n.remind_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, now.UTC(), maxReminders, limit)
	if err != nil {
		log.Error("failed to query due reminders",
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	var notes []*domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			log.Error("failed to scan due note",
				redact.ErrorAttr(err))
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating due notes",
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}

	log.Debug("due reminders retrieved", slog.Int("count", len(notes)))
	return notes, nil
}

// FindByID implements store.NoteStore.FindByID.
// Returns store.ErrNoteNotFound if the note does not exist.
func (s *PostgresNoteStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	query := `SELECT` + noteColumns + `
		FROM notes n
		JOIN users u ON u.id = n.user_id
		WHERE n.id = $1
	`
	return s.findOne(ctx, query, id)
}

// FindByIDForUpdate implements store.NoteStore.FindByIDForUpdate.
// It locks the note row until the surrounding transaction ends.
func (s *PostgresNoteStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	query := `SELECT` + noteColumns + `
		FROM notes n
		JOIN users u ON u.id = n.user_id
		WHERE n.id = $1
		FOR UPDATE OF n
	`
	return s.findOne(ctx, query, id)
}

func (s *PostgresNoteStore) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Note, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	note, err := scanNote(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("note not found", slog.String("note_id", id.String()))
			return nil, store.ErrNoteNotFound
		}
		log.Error("failed to get note by ID",
			redact.ErrorAttr(err),
			slog.String("note_id", id.String()))
		return nil, MapError(err)
	}
	return note, nil
}

// Save implements store.NoteStore.Save.
// Only the reminder fields are written; the note body belongs to the editor.
// Returns store.ErrNoteNotFound if the note does not exist.
func (s *PostgresNoteStore) Save(ctx context.Context, note *domain.Note) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var remindAt sql.NullTime
	if note.RemindAt != nil {
		remindAt = sql.NullTime{Time: note.RemindAt.UTC(), Valid: true}
	}

	note.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE notes
		SET remind_at = $1, remind_count = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, remindAt, note.RemindCount, note.UpdatedAt, note.ID)
	if err != nil {
		if IsCheckConstraintViolation(err) {
			log.Warn("note reminder state rejected by schema",
				slog.String("note_id", note.ID.String()),
				slog.Int("remind_count", note.RemindCount))
		} else {
			log.Error("failed to save note reminder state",
				redact.ErrorAttr(err),
				slog.String("note_id", note.ID.String()))
		}
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrNoteNotFound); err != nil {
		log.Debug("note not saved",
			slog.String("note_id", note.ID.String()),
			redact.ErrorAttr(err))
		return err
	}

	log.Debug("note reminder state saved",
		slog.String("note_id", note.ID.String()),
		slog.Int("remind_count", note.RemindCount),
		slog.Bool("armed", note.RemindAt != nil))
	return nil
}

// WithTx implements store.NoteStore.WithTx.
func (s *PostgresNoteStore) WithTx(tx *sql.Tx) store.NoteStore {
	return &PostgresNoteStore{
		db:     tx,
		logger: s.logger,
	}
}

// InTransaction implements store.NoteStore.InTransaction.
// A store already bound to a transaction runs fn directly.
func (s *PostgresNoteStore) InTransaction(
	ctx context.Context,
	fn func(ctx context.Context, notes store.NoteStore) error,
) error {
	if s.txs == nil {
		return fn(ctx, s)
	}
	return store.RunInTransaction(ctx, s.txs, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.WithTx(tx))
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var (
		note     domain.Note
		remindAt sql.NullTime
	)

	err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Content,
		&remindAt,
		&note.RemindCount,
		&note.AlarmEnabled,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}

	if remindAt.Valid {
		t := remindAt.Time.UTC()
		note.RemindAt = &t
	}
	return &note, nil
}
