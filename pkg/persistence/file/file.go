// Package file provides file-based persistence for development and
// single-node deployments. Definitions and archives live as JSON files
// under the configured root.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/persistence"
)

const (
	definitionsDir = "definitions"
	executionsDir  = "executions"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (p *Persistence) SaveDefinition(_ context.Context, name string, document []byte) error {
	if name == "" {
		return &persistence.DefinitionError{Op: "Save", Process: name, Err: fmt.Errorf("process name is required")}
	}

	dir := filepath.Join(p.root, definitionsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &persistence.DefinitionError{Op: "Save", Process: name, Err: err}
	}

	if err := os.WriteFile(p.definitionPath(name), document, 0o644); err != nil {
		return &persistence.DefinitionError{Op: "Save", Process: name, Err: err}
	}

	return nil
}

func (p *Persistence) DefinitionByName(_ context.Context, name string) ([]byte, error) {
	document, err := os.ReadFile(p.definitionPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.DefinitionError{Op: "Get", Process: name, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, &persistence.DefinitionError{Op: "Get", Process: name, Err: err}
	}

	return document, nil
}

func (p *Persistence) Definitions(_ context.Context) (map[string][]byte, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, definitionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}

		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	documents := make(map[string][]byte, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")

		document, err := os.ReadFile(filepath.Join(p.root, definitionsDir, entry.Name()))
		if err != nil {
			return nil, &persistence.DefinitionError{Op: "List", Process: name, Err: err}
		}

		documents[name] = document
	}

	return documents, nil
}

func (p *Persistence) DeleteDefinition(_ context.Context, name string) error {
	if err := os.Remove(p.definitionPath(name)); err != nil {
		if os.IsNotExist(err) {
			return &persistence.DefinitionError{Op: "Delete", Process: name, Err: persistence.ErrDefinitionNotFound}
		}

		return &persistence.DefinitionError{Op: "Delete", Process: name, Err: err}
	}

	return nil
}

func (p *Persistence) ArchiveExecution(_ context.Context, execution *models.ExecutionContext, records []*models.TaskRecord) error {
	dir := filepath.Join(p.root, executionsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	path := p.executionPath(execution.ID)
	if _, err := os.Stat(path); err == nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: persistence.ErrAlreadyArchived}
	}

	payload, err := json.MarshalIndent(persistence.ArchivedExecution{Execution: execution, Records: records}, "", "  ")
	if err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return &persistence.ArchiveError{Op: "Archive", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

func (p *Persistence) ArchivedExecutionByID(_ context.Context, executionID string) (*persistence.ArchivedExecution, error) {
	payload, err := os.ReadFile(p.executionPath(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: persistence.ErrArchiveNotFound}
		}

		return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: err}
	}

	var archived persistence.ArchivedExecution
	if err := json.Unmarshal(payload, &archived); err != nil {
		return nil, &persistence.ArchiveError{Op: "Get", ExecutionID: executionID, Err: err}
	}

	return &archived, nil
}

func (p *Persistence) ArchivedExecutions(ctx context.Context, processName string) ([]*models.ExecutionContext, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, executionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list archived executions: %w", err)
	}

	var executions []*models.ExecutionContext

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		archived, err := p.ArchivedExecutionByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if processName == "" || archived.Execution.ProcessName == processName {
			executions = append(executions, archived.Execution)
		}
	}

	return executions, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) definitionPath(name string) string {
	return filepath.Join(p.root, definitionsDir, name+".json")
}

func (p *Persistence) executionPath(executionID string) string {
	return filepath.Join(p.root, executionsDir, executionID+".json")
}
