// Package postgresql provides PostgreSQL persistence for process
// definitions and archived executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/persistence"
	"github.com/regenera-io/regenera/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
	archiveRepo    *ArchiveRepository
}

// NewPersistence connects, runs migrations and returns the persistence
// layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: NewDefinitionRepository(database, logger),
		archiveRepo:    NewArchiveRepository(database, logger),
	}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) SaveDefinition(ctx context.Context, name string, document []byte) error {
	return p.definitionRepo.Save(ctx, name, document)
}

func (p *Persistence) DefinitionByName(ctx context.Context, name string) ([]byte, error) {
	return p.definitionRepo.GetByName(ctx, name)
}

func (p *Persistence) Definitions(ctx context.Context) (map[string][]byte, error) {
	return p.definitionRepo.GetAll(ctx)
}

func (p *Persistence) DeleteDefinition(ctx context.Context, name string) error {
	return p.definitionRepo.Delete(ctx, name)
}

func (p *Persistence) ArchiveExecution(ctx context.Context, execution *models.ExecutionContext, records []*models.TaskRecord) error {
	return p.archiveRepo.Archive(ctx, execution, records)
}

func (p *Persistence) ArchivedExecutionByID(ctx context.Context, executionID string) (*persistence.ArchivedExecution, error) {
	return p.archiveRepo.GetByID(ctx, executionID)
}

func (p *Persistence) ArchivedExecutions(ctx context.Context, processName string) ([]*models.ExecutionContext, error) {
	return p.archiveRepo.GetByProcess(ctx, processName)
}
