package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/persistence"
	"github.com/regenera-io/regenera/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last.
	for _, table := range []string{"task_records", "archived_executions", "process_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("regenera_test"),
			postgres.WithUsername("regenera"),
			postgres.WithPassword("regenera"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
	})

	return p, ctx
}

func TestIntegration_DefinitionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	document := []byte(`{"name": "billing", "nodes": [{"id": "start", "kind": "start_event"}], "edges": []}`)

	require.NoError(t, p.SaveDefinition(ctx, "billing", document))

	stored, err := p.DefinitionByName(ctx, "billing")
	require.NoError(t, err)
	assert.JSONEq(t, string(document), string(stored))

	// Saving again overwrites.
	updated := []byte(`{"name": "billing", "nodes": [], "edges": []}`)
	require.NoError(t, p.SaveDefinition(ctx, "billing", updated))

	stored, err = p.DefinitionByName(ctx, "billing")
	require.NoError(t, err)
	assert.JSONEq(t, string(updated), string(stored))

	documents, err := p.Definitions(ctx)
	require.NoError(t, err)
	assert.Len(t, documents, 1)

	require.NoError(t, p.DeleteDefinition(ctx, "billing"))
	assert.True(t, persistence.IsDefinitionNotFound(p.DeleteDefinition(ctx, "billing")))

	_, err = p.DefinitionByName(ctx, "billing")
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestIntegration_ArchiveLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	finished := time.Now().UTC().Truncate(time.Millisecond)
	execution := &models.ExecutionContext{
		ID:            uuid.New().String(),
		ProcessName:   "billing",
		Status:        models.ExecutionStatusFailed,
		Variables:     map[string]any{"amount": 12.5},
		Metadata:      map[string]any{"initiator": "api"},
		FailureKind:   "task_failure",
		FailureDetail: "charge declined",
		StartedAt:     finished.Add(-2 * time.Second),
		FinishedAt:    &finished,
	}

	records := []*models.TaskRecord{
		{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			TaskName:    "charge",
			TaskKind:    "task",
			Outcome:     models.RecordOutcomeError,
			ErrorDetail: "charge declined",
			Attributes:  map[string]any{"node_id": "charge_node"},
			StartedAt:   execution.StartedAt,
			EndedAt:     finished,
		},
		{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			TaskName:    "billing",
			TaskKind:    "process",
			Outcome:     models.RecordOutcomeError,
			StartedAt:   execution.StartedAt,
			EndedAt:     finished,
		},
	}

	require.NoError(t, p.ArchiveExecution(ctx, execution, records))

	// Archives are immutable.
	err := p.ArchiveExecution(ctx, execution, records)
	assert.ErrorIs(t, err, persistence.ErrAlreadyArchived)

	archived, err := p.ArchivedExecutionByID(ctx, execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, archived.Execution.Status)
	assert.Equal(t, "task_failure", archived.Execution.FailureKind)
	assert.Equal(t, 12.5, archived.Execution.Variables["amount"])
	require.Len(t, archived.Records, 2)
	assert.Equal(t, "charge_node", archived.Records[0].Attributes["node_id"])

	executions, err := p.ArchivedExecutions(ctx, "billing")
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	executions, err = p.ArchivedExecutions(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, executions)

	_, err = p.ArchivedExecutionByID(ctx, uuid.New().String())
	assert.True(t, persistence.IsArchiveNotFound(err))
}

func TestIntegration_HealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}
