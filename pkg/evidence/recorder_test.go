package evidence

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/models"
)

func newTestRecorder() (*Recorder, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := NewRecorder(slog.Default(), NewMemoryStore(), nil).WithClock(clock.Now)

	return recorder, clock
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func TestRecorderBeginEnd(t *testing.T) {
	recorder, clock := newTestRecorder()
	ctx := t.Context()

	handle, err := recorder.Begin(ctx, "exec-1", "fetch_data", "task", map[string]any{"source": "api"})
	require.NoError(t, err)

	clock.Advance(250 * time.Millisecond)

	err = recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil)
	require.NoError(t, err)

	records, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "fetch_data", record.TaskName)
	assert.Equal(t, "task", record.TaskKind)
	assert.Equal(t, models.RecordOutcomeSuccess, record.Outcome)
	assert.Equal(t, "api", record.Attributes["source"])
	assert.Equal(t, 250*time.Millisecond, record.Duration())
	assert.True(t, record.Closed())
}

func TestRecorderEndWithError(t *testing.T) {
	recorder, _ := newTestRecorder()
	ctx := t.Context()

	handle, err := recorder.Begin(ctx, "exec-1", "flaky_step", "task", nil)
	require.NoError(t, err)

	err = recorder.End(ctx, handle, models.RecordOutcomeError, nil, errors.New("upstream unavailable"))
	require.NoError(t, err)

	records, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.RecordOutcomeError, records[0].Outcome)
	assert.Equal(t, "upstream unavailable", records[0].ErrorDetail)
}

func TestRecorderOpenRecordReportedIncomplete(t *testing.T) {
	recorder, clock := newTestRecorder()
	ctx := t.Context()

	handle, err := recorder.Begin(ctx, "exec-1", "stalled_step", "task", nil)
	require.NoError(t, err)

	records, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RecordOutcomeIncomplete, records[0].Outcome)

	// A late End still closes the stored record.
	clock.Advance(time.Second)

	err = recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil)
	require.NoError(t, err)

	records, err = recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordOutcomeSuccess, records[0].Outcome)
}

func TestRecordsForIsIdempotent(t *testing.T) {
	recorder, clock := newTestRecorder()
	ctx := t.Context()

	for _, name := range []string{"step_a", "step_b", "step_c"} {
		handle, err := recorder.Begin(ctx, "exec-1", name, "task", nil)
		require.NoError(t, err)

		clock.Advance(10 * time.Millisecond)
		require.NoError(t, recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil))
	}

	// One record left open on purpose.
	_, err := recorder.Begin(ctx, "exec-1", "step_d", "task", nil)
	require.NoError(t, err)

	first, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)

	second, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Outcome, second[i].Outcome)
	}
}

func TestRecordsForOrderedByStartTime(t *testing.T) {
	recorder, clock := newTestRecorder()
	ctx := t.Context()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		handle, err := recorder.Begin(ctx, "exec-1", name, "task", nil)
		require.NoError(t, err)
		require.NoError(t, recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil))

		clock.Advance(time.Second)
	}

	records, err := recorder.RecordsFor(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, name := range names {
		assert.Equal(t, name, records[i].TaskName)
	}
}

func TestRecordsMatchingWindow(t *testing.T) {
	recorder, clock := newTestRecorder()
	ctx := t.Context()

	handle, err := recorder.Begin(ctx, "exec-old", "ancient_step", "task", nil)
	require.NoError(t, err)
	require.NoError(t, recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil))

	clock.Advance(2 * time.Hour)

	handle, err = recorder.Begin(ctx, "exec-new", "recent_step", "task", nil)
	require.NoError(t, err)
	require.NoError(t, recorder.End(ctx, handle, models.RecordOutcomeSuccess, nil, nil))

	records, err := recorder.RecordsMatching(ctx, func(record *models.TaskRecord) bool {
		return record.Outcome == models.RecordOutcomeSuccess
	}, time.Hour)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "recent_step", records[0].TaskName)
}
