package evidence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
)

// MemoryStore is the in-process Store used for single-node deployments and
// tests. Records are copied on read so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*models.TaskRecord
	byID    map[string]*models.TaskRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]*models.TaskRecord),
		byID:    make(map[string]*models.TaskRecord),
	}
}

func (s *MemoryStore) Append(_ context.Context, record *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneRecord(record)
	s.records[record.ExecutionID] = append(s.records[record.ExecutionID], stored)
	s.byID[record.ID] = stored

	return nil
}

func (s *MemoryStore) Update(_ context.Context, record *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[record.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, record.ID)
	}

	*existing = *cloneRecord(record)

	return nil
}

func (s *MemoryStore) RecordsFor(_ context.Context, executionID string) ([]*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.records[executionID]
	result := make([]*models.TaskRecord, 0, len(stored))

	for _, record := range stored {
		result = append(result, cloneRecord(record))
	}

	return result, nil
}

func (s *MemoryStore) RecordsSince(_ context.Context, since time.Time) ([]*models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.TaskRecord

	for _, stored := range s.records {
		for _, record := range stored {
			if !record.StartedAt.Before(since) {
				result = append(result, cloneRecord(record))
			}
		}
	}

	return result, nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func cloneRecord(record *models.TaskRecord) *models.TaskRecord {
	clone := *record

	if record.Attributes != nil {
		clone.Attributes = make(map[string]any, len(record.Attributes))
		for k, v := range record.Attributes {
			clone.Attributes[k] = v
		}
	}

	return &clone
}
