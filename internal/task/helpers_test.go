package task

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// fakeTask implements Task with a pluggable Execute.
type fakeTask struct {
	id      uuid.UUID
	payload []byte
	execFn  func(ctx context.Context) error
}

func newFakeTask(fn func(ctx context.Context) error) *fakeTask {
	return &fakeTask{id: uuid.New(), execFn: fn}
}

func (f *fakeTask) ID() uuid.UUID { return f.id }
func (f *fakeTask) Type() string  { return TypeReminderJob }
func (f *fakeTask) Payload() []byte {
	if f.payload != nil {
		return f.payload
	}
	return []byte(f.id.String())
}
func (f *fakeTask) Status() Status { return StatusPending }

func (f *fakeTask) Execute(ctx context.Context) error {
	if f.execFn == nil {
		return nil
	}
	return f.execFn(ctx)
}

// chanSource is a Source backed by a plain channel.
type chanSource chan Task

func (c chanSource) Tasks() <-chan Task { return c }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
