package definition

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/regenera-io/regenera/pkg/models"
)

// Store holds the loaded process specifications keyed by process name.
// Definitions are usually loaded at startup, but the management API may
// register and remove them at runtime.
type Store struct {
	logger *slog.Logger
	loader *Loader

	mu    sync.RWMutex
	specs map[string]*models.ProcessSpec
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger: logger.With("module", "definition_store"),
		loader: NewLoader(),
		specs:  make(map[string]*models.ProcessSpec),
	}
}

// Add loads one definition document into the store.
func (s *Store) Add(data []byte) (*models.ProcessSpec, error) {
	spec, err := s.loader.Load(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.specs[spec.Name]; exists {
		return nil, &ParseError{Process: spec.Name, Issues: []string{"process name already loaded"}}
	}

	s.specs[spec.Name] = spec
	s.logger.Info("Loaded process definition", "process", spec.Name, "nodes", len(spec.Nodes), "edges", len(spec.Edges))

	return spec, nil
}

// AddSpec registers an already-built specification, used by components
// that assemble remediation processes programmatically.
func (s *Store) AddSpec(spec *models.ProcessSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.specs[spec.Name]; exists {
		return &ParseError{Process: spec.Name, Issues: []string{"process name already loaded"}}
	}

	spec.Index()

	if issues := validateStructure(spec); len(issues) > 0 {
		return &ParseError{Process: spec.Name, Issues: issues}
	}

	s.specs[spec.Name] = spec

	return nil
}

// LoadDirectory loads every .json definition found directly under path.
func (s *Store) LoadDirectory(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read definitions directory %s: %w", path, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read definition %s: %w", entry.Name(), err)
		}

		if _, err := s.Add(data); err != nil {
			return fmt.Errorf("failed to load definition %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Get returns the spec for the given process name.
func (s *Store) Get(name string) (*models.ProcessSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}

	return spec, nil
}

// Remove drops a loaded definition. Executions already running against it
// are unaffected; they hold their own reference to the spec.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.specs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}

	delete(s.specs, name)

	return nil
}

// Names returns all loaded process names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
