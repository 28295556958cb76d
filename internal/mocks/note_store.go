package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/store"
)

// MockNoteStore implements store.NoteStore in memory for testing.
// Notes are copied on the way in and out, so callers never share state with the store.
// Transactions are serialized and roll back on error.
type MockNoteStore struct {
	// Function fields for customizable behavior
	FindDueRemindersFn  func(ctx context.Context, now time.Time, maxReminders, limit int) ([]*domain.Note, error)
	FindByIDFn          func(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	FindByIDForUpdateFn func(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	SaveFn              func(ctx context.Context, note *domain.Note) error

	// SaveErr, when set, is returned by every Save
	SaveErr error

	mu    sync.Mutex
	txMu  sync.Mutex
	notes map[uuid.UUID]*domain.Note

	// Call tracking for verification
	SaveCalls        int
	CommittedTx      int
	RolledBackTx     int
	FindDueCalls     int
	LastFindDueLimit int
}

// NewMockNoteStore creates an empty in-memory store.
func NewMockNoteStore() *MockNoteStore {
	return &MockNoteStore{
		notes: make(map[uuid.UUID]*domain.Note),
	}
}

// Ensure MockNoteStore implements store.NoteStore
var _ store.NoteStore = (*MockNoteStore)(nil)

// Put stores a copy of note.
func (m *MockNoteStore) Put(note *domain.Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[note.ID] = cloneNote(note)
}

// Get returns a copy of the stored note, or nil.
func (m *MockNoteStore) Get(id uuid.UUID) *domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		return cloneNote(n)
	}
	return nil
}

// FindDueReminders implements store.NoteStore
func (m *MockNoteStore) FindDueReminders(
	ctx context.Context,
	now time.Time,
	maxReminders, limit int,
) ([]*domain.Note, error) {
	m.mu.Lock()
	m.FindDueCalls++
	m.LastFindDueLimit = limit
	m.mu.Unlock()

	if m.FindDueRemindersFn != nil {
		return m.FindDueRemindersFn(ctx, now, maxReminders, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Note
	for _, n := range m.notes {
		if limit > 0 && len(due) >= limit {
			break
		}
		if n.IsDue(now, maxReminders) {
			due = append(due, cloneNote(n))
		}
	}
	return due, nil
}

// FindByID implements store.NoteStore
func (m *MockNoteStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	return m.find(id)
}

// FindByIDForUpdate implements store.NoteStore
func (m *MockNoteStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	if m.FindByIDForUpdateFn != nil {
		return m.FindByIDForUpdateFn(ctx, id)
	}
	return m.find(id)
}

func (m *MockNoteStore) find(id uuid.UUID) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, store.ErrNoteNotFound
	}
	return cloneNote(n), nil
}

// Save implements store.NoteStore
func (m *MockNoteStore) Save(ctx context.Context, note *domain.Note) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()

	if m.SaveFn != nil {
		return m.SaveFn(ctx, note)
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[note.ID]; !ok {
		return store.ErrNoteNotFound
	}
	note.UpdatedAt = time.Now().UTC()
	m.notes[note.ID] = cloneNote(note)
	return nil
}

// InTransaction implements store.NoteStore.
// fn runs against this store; its writes are undone if it returns an error.
func (m *MockNoteStore) InTransaction(
	ctx context.Context,
	fn func(ctx context.Context, notes store.NoteStore) error,
) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := make(map[uuid.UUID]*domain.Note, len(m.notes))
	for id, n := range m.notes {
		snapshot[id] = cloneNote(n)
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.notes = snapshot
		m.RolledBackTx++
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.CommittedTx++
	m.mu.Unlock()
	return nil
}

// WithTx implements store.NoteStore; the mock has no real transactions.
func (m *MockNoteStore) WithTx(tx *sql.Tx) store.NoteStore {
	return m
}

func cloneNote(n *domain.Note) *domain.Note {
	c := *n
	if n.RemindAt != nil {
		at := *n.RemindAt
		c.RemindAt = &at
	}
	return &c
}
