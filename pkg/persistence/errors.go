package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound indicates no stored definition document exists
	// under the given process name.
	ErrDefinitionNotFound = errors.New("process definition not found")

	// ErrArchiveNotFound indicates no archived execution exists for the
	// given identifier.
	ErrArchiveNotFound = errors.New("archived execution not found")

	// ErrAlreadyArchived indicates an archive attempt for an execution that
	// was already stored; archives are immutable.
	ErrAlreadyArchived = errors.New("execution already archived")
)

// DefinitionError wraps definition-store failures with the operation and
// process name.
type DefinitionError struct {
	Op      string
	Process string
	Err     error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s failed for definition %s: %v", e.Op, e.Process, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ArchiveError wraps archive failures with the operation and execution
// identifier.
type ArchiveError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

func (e *ArchiveError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsArchiveNotFound checks if an error indicates a missing archive entry.
func IsArchiveNotFound(err error) bool {
	return errors.Is(err, ErrArchiveNotFound)
}
