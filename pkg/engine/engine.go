// Package engine interprets process specifications: it advances tokens
// through sequence flows, dispatches tasks, evaluates gateways, applies
// timeouts and error boundaries, and drives each execution to a terminal
// status.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/eventbus"
	"github.com/regenera-io/regenera/pkg/events"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/registry"
)

// Archiver persists a terminal execution together with its evidence.
// Implementations live in the persistence layer.
type Archiver interface {
	ArchiveExecution(ctx context.Context, execution *models.ExecutionContext, records []*models.TaskRecord) error
}

// Engine runs executions concurrently, one runner per execution. State is
// locked per execution; executions never contend with each other.
type Engine struct {
	logger      *slog.Logger
	definitions *definition.Store
	registry    *registry.Registry
	recorder    *evidence.Recorder
	publisher   eventbus.EventPublisher
	archiver    Archiver
	guard       models.GuardInterpreter
	taskTimeout time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	runners map[string]*runner
}

type Option func(*Engine)

// WithPublisher mirrors lifecycle transitions onto the event bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithArchiver persists terminal executions and their evidence.
func WithArchiver(archiver Archiver) Option {
	return func(e *Engine) { e.archiver = archiver }
}

// WithDefaultTaskTimeout bounds task dispatches whose node declares no
// timeout of its own. Zero leaves them unbounded.
func WithDefaultTaskTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.taskTimeout = timeout }
}

// WithClock overrides the engine's time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(logger *slog.Logger, definitions *definition.Store, reg *registry.Registry, recorder *evidence.Recorder, opts ...Option) *Engine {
	engine := &Engine{
		logger:      logger.With("module", "engine"),
		definitions: definitions,
		registry:    reg,
		recorder:    recorder,
		now:         time.Now,
		runners:     make(map[string]*runner),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Start launches an execution of the named process and returns immediately
// with its identifier.
func (e *Engine) Start(ctx context.Context, processName string, variables map[string]any) (string, error) {
	spec, err := e.definitions.Get(processName)
	if err != nil {
		return "", fmt.Errorf("failed to start execution: %w", err)
	}

	exec := &models.ExecutionContext{
		ID:          uuid.New().String(),
		ProcessName: processName,
		Status:      models.ExecutionStatusRunning,
		Variables:   variables,
		Metadata:    make(map[string]any),
		StartedAt:   e.now().UTC(),
	}

	if exec.Variables == nil {
		exec.Variables = make(map[string]any)
	}

	// The runner outlives the caller's context; only Abort or a terminal
	// status stops it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	run := &runner{
		engine: e,
		spec:   spec,
		exec:   exec,
		ctx:    runCtx,
		cancel: cancel,
		logger: e.logger.With("execution_id", exec.ID, "process", processName),
		joins:  make(map[string]*joinState),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.runners[exec.ID] = run
	e.mu.Unlock()

	procHandle, err := e.recorder.Begin(runCtx, exec.ID, processName, evidence.RecordKindProcess, nil)
	if err != nil {
		cancel()

		// The runner never spawned a token; deregister it so it cannot
		// linger as a running execution nobody can wait on.
		e.mu.Lock()
		delete(e.runners, exec.ID)
		e.mu.Unlock()

		return "", fmt.Errorf("failed to open execution record: %w", err)
	}

	run.procHandle = procHandle

	run.logger.InfoContext(ctx, "Execution started")
	e.publish(ctx, exec.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, processName),
		ExecutionID: exec.ID,
		Variables:   exec.SnapshotVariables(),
	})

	run.mu.Lock()
	run.spawnLocked(&models.Token{ID: uuid.New().String(), NodeID: spec.StartNode().ID})
	run.mu.Unlock()

	return exec.ID, nil
}

// Execute starts an execution and blocks until it reaches a terminal
// status or the context is canceled.
func (e *Engine) Execute(ctx context.Context, processName string, variables map[string]any) (*models.ExecutionContext, error) {
	executionID, err := e.Start(ctx, processName, variables)
	if err != nil {
		return nil, err
	}

	return e.Wait(ctx, executionID)
}

// Wait blocks until the execution reaches a terminal status and returns
// its final snapshot.
func (e *Engine) Wait(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	run, err := e.runner(executionID)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-run.done:
		return run.snapshot(), nil
	}
}

// Status returns a read-only snapshot of the execution's current state.
func (e *Engine) Status(executionID string) (*models.ExecutionContext, error) {
	run, err := e.runner(executionID)
	if err != nil {
		return nil, err
	}

	return run.snapshot(), nil
}

// List returns snapshots of all known executions, running and terminal.
func (e *Engine) List() []*models.ExecutionContext {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*models.ExecutionContext, 0, len(e.runners))
	for _, run := range e.runners {
		result = append(result, run.snapshot())
	}

	return result
}

// Abort cancels all outstanding branch tokens of one execution and marks
// it Aborted. Completed task handlers are not rolled back.
func (e *Engine) Abort(ctx context.Context, executionID, reason string) error {
	run, err := e.runner(executionID)
	if err != nil {
		return err
	}

	return run.abort(ctx, reason)
}

// Resume merges the supplied input into the variable bag of a suspended
// execution and re-enqueues its parked tokens.
func (e *Engine) Resume(ctx context.Context, executionID string, input map[string]any) error {
	run, err := e.runner(executionID)
	if err != nil {
		return err
	}

	return run.resume(ctx, input)
}

func (e *Engine) runner(executionID string) (*runner, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	run, ok := e.runners[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	return run, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
