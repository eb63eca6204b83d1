// Package persistence abstracts storage of process definition documents and
// archived terminal executions.
package persistence

import (
	"context"

	"github.com/regenera-io/regenera/pkg/models"
)

// ArchivedExecution is a terminal execution together with the evidence it
// produced, as stored by the archive.
type ArchivedExecution struct {
	Execution *models.ExecutionContext `json:"execution"`
	Records   []*models.TaskRecord     `json:"records"`
}

type Persistence interface {
	// SaveDefinition stores a raw process definition document under the
	// process name. Documents are validated by the definition loader, not
	// here.
	SaveDefinition(ctx context.Context, name string, document []byte) error
	DefinitionByName(ctx context.Context, name string) ([]byte, error)
	Definitions(ctx context.Context) (map[string][]byte, error)
	DeleteDefinition(ctx context.Context, name string) error

	// ArchiveExecution stores a terminal execution and its task records.
	// Archived executions are immutable.
	ArchiveExecution(ctx context.Context, execution *models.ExecutionContext, records []*models.TaskRecord) error
	ArchivedExecutionByID(ctx context.Context, executionID string) (*ArchivedExecution, error)
	ArchivedExecutions(ctx context.Context, processName string) ([]*models.ExecutionContext, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
