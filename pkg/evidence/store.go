// Package evidence captures per-step execution evidence as spans and
// provides the query and validation operations built on top of it.
package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
)

// ErrRecordNotFound indicates an update against a record the store never
// saw begin.
var ErrRecordNotFound = errors.New("task record not found")

// Record kinds distinguish task-level spans from the execution-level span
// the engine opens around a whole process run.
const (
	RecordKindTask    = "task"
	RecordKindProcess = "process"
)

// Store persists task records. Implementations must keep records for one
// execution retrievable in a stable order.
type Store interface {
	// Append stores a freshly opened record.
	Append(ctx context.Context, record *models.TaskRecord) error

	// Update replaces a previously appended record with its closed form.
	Update(ctx context.Context, record *models.TaskRecord) error

	// RecordsFor returns all records belonging to one execution.
	RecordsFor(ctx context.Context, executionID string) ([]*models.TaskRecord, error)

	// RecordsSince returns all records started at or after the given time,
	// across executions.
	RecordsSince(ctx context.Context, since time.Time) ([]*models.TaskRecord, error)

	Close(ctx context.Context) error
}
