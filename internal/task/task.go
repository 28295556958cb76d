package task

import (
	"context"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TypeReminderJob identifies a reminder job claimed from the delayed queue.
const TypeReminderJob = "reminder_job"

// Task is one unit of in-process background work.
type Task interface {
	ID() uuid.UUID
	Type() string
	// Payload is the serialized work item, used for logging and inspection
	Payload() []byte
	Status() Status
	Execute(ctx context.Context) error
}

// Source hands tasks to a Pool. The channel is closed once no more tasks
// will be produced.
type Source interface {
	Tasks() <-chan Task
}
