package evidence

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/telemetry"
)

// Handle pairs one Begin with its matching End. Handles are single-use.
type Handle struct {
	recordID    string
	executionID string
	taskName    string
	span        trace.Span
}

// Recorder wraps every task and engine-level operation in a traced unit of
// work. Records are immutable once closed; unmatched begins surface as
// Incomplete records on query via the reconciliation sweep.
type Recorder struct {
	logger *slog.Logger
	store  Store
	tracer trace.Tracer
	now    func() time.Time
}

// NewRecorder creates a recorder. The tracer is optional; without one the
// recorder only persists records.
func NewRecorder(logger *slog.Logger, store Store, tracer trace.Tracer) *Recorder {
	return &Recorder{
		logger: logger.With("module", "evidence_recorder"),
		store:  store,
		tracer: tracer,
		now:    time.Now,
	}
}

// WithClock overrides the recorder's time source. Tests only.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now

	return r
}

// Begin opens a record for one unit of work.
func (r *Recorder) Begin(ctx context.Context, executionID, taskName, taskKind string, attrs map[string]any) (*Handle, error) {
	record := &models.TaskRecord{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		TaskName:    taskName,
		TaskKind:    taskKind,
		StartedAt:   r.now().UTC(),
		Attributes:  attrs,
	}

	if err := r.store.Append(ctx, record); err != nil {
		return nil, err
	}

	handle := &Handle{
		recordID:    record.ID,
		executionID: executionID,
		taskName:    taskName,
	}

	if r.tracer != nil {
		_, span := telemetry.StartSpan(ctx, r.tracer, taskName,
			attribute.String(telemetry.ExecutionIDKey, executionID),
			attribute.String(telemetry.TaskNameKey, taskName),
			attribute.String(telemetry.TaskKindKey, taskKind),
		)
		handle.span = span
	}

	return handle, nil
}

// End closes the record opened by Begin. Every Begin must be paired with
// exactly one End.
func (r *Recorder) End(ctx context.Context, handle *Handle, outcome models.RecordOutcome, attrs map[string]any, recordErr error) error {
	record := &models.TaskRecord{
		ID:          handle.recordID,
		ExecutionID: handle.executionID,
		TaskName:    handle.taskName,
		EndedAt:     r.now().UTC(),
		Outcome:     outcome,
		Attributes:  attrs,
	}

	if recordErr != nil {
		record.ErrorDetail = recordErr.Error()
	}

	// Update merges onto the stored open record, so refetch the fields the
	// handle does not carry.
	stored, err := r.store.RecordsFor(ctx, handle.executionID)
	if err != nil {
		return err
	}

	for _, open := range stored {
		if open.ID == handle.recordID {
			record.TaskKind = open.TaskKind
			record.StartedAt = open.StartedAt

			if record.Attributes == nil {
				record.Attributes = open.Attributes
			}

			break
		}
	}

	if err := r.store.Update(ctx, record); err != nil {
		return err
	}

	if handle.span != nil {
		if recordErr != nil {
			telemetry.SetError(handle.span, recordErr)
		}

		handle.span.End()
	}

	return nil
}

// RecordsFor returns the execution's records ordered by start time. Open
// records are reported with outcome Incomplete; the stored record is left
// untouched so a late End can still close it.
func (r *Recorder) RecordsFor(ctx context.Context, executionID string) ([]*models.TaskRecord, error) {
	records, err := r.store.RecordsFor(ctx, executionID)
	if err != nil {
		return nil, err
	}

	reconcile(records)
	sortRecords(records)

	return records, nil
}

// RecordsMatching returns records started within the trailing window that
// satisfy the predicate.
func (r *Recorder) RecordsMatching(ctx context.Context, predicate func(*models.TaskRecord) bool, window time.Duration) ([]*models.TaskRecord, error) {
	records, err := r.store.RecordsSince(ctx, r.now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}

	reconcile(records)
	sortRecords(records)

	matched := make([]*models.TaskRecord, 0, len(records))

	for _, record := range records {
		if predicate(record) {
			matched = append(matched, record)
		}
	}

	return matched, nil
}

// reconcile marks still-open records as Incomplete in the returned view.
func reconcile(records []*models.TaskRecord) {
	for _, record := range records {
		if !record.Closed() && record.Outcome == "" {
			record.Outcome = models.RecordOutcomeIncomplete
		}
	}
}

// sortRecords orders by start time with the record ID as tie breaker, so
// repeated queries over unchanged evidence return identical sequences.
func sortRecords(records []*models.TaskRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
