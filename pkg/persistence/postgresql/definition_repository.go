package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/regenera-io/regenera/pkg/persistence"
)

// DefinitionRepository stores raw process definition documents.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger.With("module", "postgresql_definitions"),
	}
}

func (r *DefinitionRepository) Save(ctx context.Context, name string, document []byte) error {
	query := `
		INSERT INTO process_definitions (name, document)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, name, document); err != nil {
		return &persistence.DefinitionError{Op: "Save", Process: name, Err: err}
	}

	return nil
}

func (r *DefinitionRepository) GetByName(ctx context.Context, name string) ([]byte, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM process_definitions WHERE name = $1", name).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.DefinitionError{Op: "Get", Process: name, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, &persistence.DefinitionError{Op: "Get", Process: name, Err: err}
	}

	return document, nil
}

func (r *DefinitionRepository) GetAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, document FROM process_definitions ORDER BY name")
	if err != nil {
		return nil, &persistence.DefinitionError{Op: "List", Err: err}
	}
	defer rows.Close()

	documents := make(map[string][]byte)

	for rows.Next() {
		var (
			name     string
			document []byte
		)

		if err := rows.Scan(&name, &document); err != nil {
			return nil, &persistence.DefinitionError{Op: "List", Err: err}
		}

		documents[name] = document
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.DefinitionError{Op: "List", Err: err}
	}

	return documents, nil
}

func (r *DefinitionRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM process_definitions WHERE name = $1", name)
	if err != nil {
		return &persistence.DefinitionError{Op: "Delete", Process: name, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.DefinitionError{Op: "Delete", Process: name, Err: err}
	}

	if affected == 0 {
		return &persistence.DefinitionError{Op: "Delete", Process: name, Err: persistence.ErrDefinitionNotFound}
	}

	return nil
}
