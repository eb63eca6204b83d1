package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/persistence"
)

// ArchiveRepository stores terminal executions together with their task
// records. Rows are written once inside a single transaction and never
// updated.
type ArchiveRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewArchiveRepository(db *sql.DB, logger *slog.Logger) *ArchiveRepository {
	return &ArchiveRepository{
		db:     db,
		logger: logger.With("module", "postgresql_archive"),
	}
}

func (r *ArchiveRepository) Archive(ctx context.Context, execution *models.ExecutionContext, records []*models.TaskRecord) error {
	variables, err := json.Marshal(execution.Variables)
	if err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	metadata, err := json.Marshal(execution.Metadata)
	if err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	finishedAt := execution.StartedAt
	if execution.FinishedAt != nil {
		finishedAt = *execution.FinishedAt
	}

	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	insertExecution := `
		INSERT INTO archived_executions
			(id, process_name, status, variables, metadata, failure_kind, failure_detail, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := transaction.ExecContext(ctx, insertExecution,
		execution.ID, execution.ProcessName, string(execution.Status),
		variables, metadata, execution.FailureKind, execution.FailureDetail,
		execution.StartedAt, finishedAt)
	if err != nil {
		_ = transaction.Rollback()

		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = transaction.Rollback()

		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	if affected == 0 {
		_ = transaction.Rollback()

		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: persistence.ErrAlreadyArchived}
	}

	insertRecord := `
		INSERT INTO task_records
			(id, execution_id, task_name, task_kind, outcome, attributes, error_detail, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, record := range records {
		attributes, err := json.Marshal(record.Attributes)
		if err != nil {
			_ = transaction.Rollback()

			return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
		}

		var endedAt *time.Time
		if !record.EndedAt.IsZero() {
			endedAt = &record.EndedAt
		}

		_, err = transaction.ExecContext(ctx, insertRecord,
			record.ID, record.ExecutionID, record.TaskName, record.TaskKind,
			string(record.Outcome), attributes, record.ErrorDetail,
			record.StartedAt, endedAt)
		if err != nil {
			_ = transaction.Rollback()

			return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
		}
	}

	if err := transaction.Commit(); err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

func (r *ArchiveRepository) GetByID(ctx context.Context, executionID string) (*persistence.ArchivedExecution, error) {
	query := `
		SELECT id, process_name, status, variables, metadata, failure_kind, failure_detail, started_at, finished_at
		FROM archived_executions
		WHERE id = $1
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, executionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: persistence.ErrArchiveNotFound}
		}

		return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: err}
	}

	records, err := r.recordsFor(ctx, executionID)
	if err != nil {
		return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: err}
	}

	return &persistence.ArchivedExecution{Execution: execution, Records: records}, nil
}

func (r *ArchiveRepository) GetByProcess(ctx context.Context, processName string) ([]*models.ExecutionContext, error) {
	query := `
		SELECT id, process_name, status, variables, metadata, failure_kind, failure_detail, started_at, finished_at
		FROM archived_executions
	`

	args := []any{}

	if processName != "" {
		query += " WHERE process_name = $1"

		args = append(args, processName)
	}

	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &persistence.ArchiveError{Op: "List", Err: err}
	}
	defer rows.Close()

	var executions []*models.ExecutionContext

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, &persistence.ArchiveError{Op: "List", Err: err}
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.ArchiveError{Op: "List", Err: err}
	}

	return executions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ArchiveRepository) scanExecution(row rowScanner) (*models.ExecutionContext, error) {
	var (
		execution     models.ExecutionContext
		status        string
		variables     []byte
		metadata      []byte
		failureKind   sql.NullString
		failureDetail sql.NullString
		finishedAt    time.Time
	)

	err := row.Scan(&execution.ID, &execution.ProcessName, &status,
		&variables, &metadata, &failureKind, &failureDetail,
		&execution.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.FinishedAt = &finishedAt
	execution.FailureKind = failureKind.String
	execution.FailureDetail = failureDetail.String

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &execution.Variables); err != nil {
			return nil, err
		}
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &execution.Metadata); err != nil {
			return nil, err
		}
	}

	return &execution, nil
}

func (r *ArchiveRepository) recordsFor(ctx context.Context, executionID string) ([]*models.TaskRecord, error) {
	query := `
		SELECT id, execution_id, task_name, task_kind, outcome, attributes, error_detail, started_at, ended_at
		FROM task_records
		WHERE execution_id = $1
		ORDER BY started_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.TaskRecord

	for rows.Next() {
		var (
			record      models.TaskRecord
			outcome     string
			attributes  []byte
			errorDetail sql.NullString
			endedAt     sql.NullTime
		)

		err := rows.Scan(&record.ID, &record.ExecutionID, &record.TaskName, &record.TaskKind,
			&outcome, &attributes, &errorDetail, &record.StartedAt, &endedAt)
		if err != nil {
			return nil, err
		}

		record.Outcome = models.RecordOutcome(outcome)
		record.ErrorDetail = errorDetail.String

		if endedAt.Valid {
			record.EndedAt = endedAt.Time
		}

		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &record.Attributes); err != nil {
				return nil, err
			}
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}
