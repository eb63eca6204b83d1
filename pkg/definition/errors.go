package definition

import (
	"errors"
	"strings"
)

// ErrProcessNotFound indicates a lookup for a process name the store never
// loaded.
var ErrProcessNotFound = errors.New("process not found")

// ParseError reports a malformed process definition. It is fatal at load
// time and collects every issue found rather than stopping at the first.
type ParseError struct {
	Process string
	Issues  []string
}

func (e *ParseError) Error() string {
	if e.Process == "" {
		return "invalid process definition: " + strings.Join(e.Issues, "; ")
	}

	return "invalid process definition " + e.Process + ": " + strings.Join(e.Issues, "; ")
}

// IsParseError checks whether an error is a definition parse failure.
func IsParseError(err error) bool {
	var parseErr *ParseError

	return errors.As(err, &parseErr)
}
