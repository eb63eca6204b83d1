package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regenera-io/regenera/pkg/events"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/protocol"
	"github.com/regenera-io/regenera/pkg/registry"
)

// joinState tracks arrivals at one parallel join for one execution. The
// merge fires exactly once per round; counters reset so loop-back flows can
// pass the join again.
type joinState struct {
	expected int
	arrived  int
}

// runner owns one execution: its tokens, join states and status
// transitions. Each token advances in its own goroutine; all shared state
// sits behind the runner's lock.
type runner struct {
	engine     *Engine
	spec       *models.ProcessSpec
	exec       *models.ExecutionContext
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger
	procHandle *evidence.Handle
	done       chan struct{}

	mu       sync.Mutex
	joins    map[string]*joinState
	active   int
	parked   []*models.Token
	finished bool
}

func (r *runner) spawnLocked(token *models.Token) {
	r.exec.Tokens = append(r.exec.Tokens, token)
	r.active++

	go r.run(token)
}

func (r *runner) run(token *models.Token) {
	defer r.release(token)

	for {
		if r.ctx.Err() != nil {
			return
		}

		r.mu.Lock()
		halted := r.exec.Status == models.ExecutionStatusFailed || r.exec.Status == models.ExecutionStatusAborted
		r.mu.Unlock()

		if halted {
			return
		}

		node, ok := r.spec.NodeByID(token.NodeID)
		if !ok {
			r.fail(FailureKindTaskFailure, fmt.Sprintf("token at unknown node %s", token.NodeID))

			return
		}

		var (
			next    string
			advance bool
		)

		switch node.Kind {
		case models.NodeKindStartEvent, models.NodeKindBoundaryEvent:
			next, advance = r.spec.Outgoing(node.ID)[0].To, true

		case models.NodeKindTask:
			next, advance = r.runTask(token, node)

		case models.NodeKindExclusiveGateway:
			next, advance = r.chooseBranch(node)

		case models.NodeKindParallelGateway:
			if len(r.spec.Outgoing(node.ID)) > 1 {
				r.fork(node)

				return
			}

			next, advance = r.arriveJoin(node)

		case models.NodeKindTimerEvent:
			next, advance = r.awaitTimer(node)

		case models.NodeKindEndEvent:
			// Token absorbed. The execution completes once the last
			// active token is gone.
			return

		default:
			r.fail(FailureKindTaskFailure, fmt.Sprintf("unsupported node kind %s at %s", node.Kind, node.ID))

			return
		}

		if !advance {
			return
		}

		r.move(token, next)
	}
}

func (r *runner) move(token *models.Token, nodeID string) {
	r.mu.Lock()
	token.NodeID = nodeID
	r.mu.Unlock()
}

// fork splits the token into one token per outgoing edge. The current
// token is absorbed by the gateway.
func (r *runner) fork(node *models.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, edge := range r.spec.Outgoing(node.ID) {
		r.spawnLocked(&models.Token{ID: uuid.New().String(), NodeID: edge.To})
	}
}

// arriveJoin holds the token until every incoming branch has arrived, then
// merges onto the outgoing edge. Only the last arriving token continues.
func (r *runner) arriveJoin(node *models.Node) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.joins[node.ID]
	if !ok {
		state = &joinState{expected: len(r.spec.Incoming(node.ID))}
		r.joins[node.ID] = state
	}

	state.arrived++

	if state.arrived < state.expected {
		return "", false
	}

	state.arrived = 0

	return r.spec.Outgoing(node.ID)[0].To, true
}

// chooseBranch evaluates the gateway's outgoing guards in declaration
// order and takes the first match, falling back to the default edge.
func (r *runner) chooseBranch(node *models.Node) (string, bool) {
	r.mu.Lock()
	variables := r.exec.SnapshotVariables()
	r.mu.Unlock()

	var defaultEdge *models.Edge

	for _, edge := range r.spec.Outgoing(node.ID) {
		if edge.Default {
			defaultEdge = edge

			continue
		}

		matched, err := r.engine.guard.Evaluate(edge.Guard, variables)
		if err != nil {
			r.fail(FailureKindNoMatchingBranch, fmt.Sprintf("guard %q on edge %s: %v", edge.Guard, edge.ID, err))

			return "", false
		}

		if matched {
			return edge.To, true
		}
	}

	if defaultEdge != nil {
		return defaultEdge.To, true
	}

	r.fail(FailureKindNoMatchingBranch, fmt.Sprintf("%v at gateway %s", ErrNoMatchingBranch, node.ID))

	return "", false
}

// awaitTimer suspends only this branch until the declared duration
// elapses; other tokens keep advancing.
func (r *runner) awaitTimer(node *models.Node) (string, bool) {
	timer := time.NewTimer(node.Duration)
	defer timer.Stop()

	select {
	case <-r.ctx.Done():
		return "", false
	case <-timer.C:
	}

	return r.spec.Outgoing(node.ID)[0].To, true
}

func (r *runner) runTask(token *models.Token, node *models.Node) (string, bool) {
	handle, err := r.engine.recorder.Begin(r.ctx, r.exec.ID, node.TaskName, evidence.RecordKindTask,
		map[string]any{"node_id": node.ID})
	if err != nil {
		r.fail(FailureKindTaskFailure, fmt.Sprintf("failed to open task record: %v", err))

		return "", false
	}

	timeout := node.Timeout
	if timeout == 0 {
		timeout = r.engine.taskTimeout
	}

	taskCtx := r.ctx

	var cancelTask context.CancelFunc

	if timeout > 0 {
		taskCtx, cancelTask = context.WithTimeout(r.ctx, timeout)
		defer cancelTask()
	}

	r.mu.Lock()
	input := protocol.TaskInput{
		ExecutionID: r.exec.ID,
		ProcessName: r.exec.ProcessName,
		NodeID:      node.ID,
		Variables:   r.exec.SnapshotVariables(),
		Config:      node.Config,
		Logger:      r.logger.With("task", node.TaskName, "node_id", node.ID),
	}
	r.mu.Unlock()

	started := r.engine.now()

	type dispatchResult struct {
		mutations map[string]any
		err       error
	}

	resultCh := make(chan dispatchResult, 1)

	go func() {
		mutations, dispatchErr := r.engine.registry.Dispatch(taskCtx, node.TaskName, input)
		resultCh <- dispatchResult{mutations: mutations, err: dispatchErr}
	}()

	// The deadline is authoritative. A handler that ignores its context
	// cannot turn an expired dispatch into a success; whatever it returns
	// after this point is discarded.
	var mutations map[string]any

	select {
	case result := <-resultCh:
		mutations, err = result.mutations, result.err
	case <-taskCtx.Done():
		err = taskCtx.Err()
	}

	duration := r.engine.now().Sub(started)

	// Evidence must survive even when the runner is being torn down.
	endCtx := context.WithoutCancel(r.ctx)

	if err == nil {
		r.mu.Lock()
		r.exec.ApplyMutations(mutations)
		r.mu.Unlock()

		if err := r.engine.recorder.End(endCtx, handle, models.RecordOutcomeSuccess, nil, nil); err != nil {
			r.logger.ErrorContext(endCtx, "Failed to close task record", "task", node.TaskName, "error", err)
		}

		r.engine.publish(endCtx, r.exec.ID, events.TaskFinished{
			BaseEvent:   events.NewBaseEvent(events.TaskFinishedEvent, r.exec.ProcessName),
			ExecutionID: r.exec.ID,
			NodeID:      node.ID,
			TaskName:    node.TaskName,
			Duration:    duration,
		})

		return r.spec.Outgoing(node.ID)[0].To, true
	}

	if errors.Is(err, protocol.ErrAwaitInput) {
		if endErr := r.engine.recorder.End(endCtx, handle, models.RecordOutcomeSuccess,
			map[string]any{"node_id": node.ID, "suspended": true}, nil); endErr != nil {
			r.logger.ErrorContext(endCtx, "Failed to close task record", "task", node.TaskName, "error", endErr)
		}

		r.suspend(endCtx, token, node)

		return "", false
	}

	kind := FailureKindTaskFailure

	switch {
	case errors.Is(err, registry.ErrTaskNotFound):
		kind = FailureKindTaskNotFound
	case errors.Is(taskCtx.Err(), context.DeadlineExceeded) && r.ctx.Err() == nil:
		kind = FailureKindTimeoutExceeded
	}

	taskErr := &TaskFailureError{NodeID: node.ID, TaskName: node.TaskName, Kind: kind, Err: err}

	if endErr := r.engine.recorder.End(endCtx, handle, models.RecordOutcomeError,
		map[string]any{"node_id": node.ID, "failure_kind": kind}, taskErr); endErr != nil {
		r.logger.ErrorContext(endCtx, "Failed to close task record", "task", node.TaskName, "error", endErr)
	}

	r.engine.publish(endCtx, r.exec.ID, events.TaskFailed{
		BaseEvent:   events.NewBaseEvent(events.TaskFailedEvent, r.exec.ProcessName),
		ExecutionID: r.exec.ID,
		NodeID:      node.ID,
		TaskName:    node.TaskName,
		FailureKind: kind,
		Error:       err.Error(),
		Duration:    duration,
	})

	if r.ctx.Err() != nil {
		// The execution was aborted or failed elsewhere while the handler
		// ran; its status is already decided.
		return "", false
	}

	// Misconfiguration is fatal regardless of boundaries.
	if kind != FailureKindTaskNotFound {
		if boundary, ok := r.spec.BoundaryFor(node.ID); ok {
			r.logger.WarnContext(endCtx, "Redirecting through error boundary",
				"task", node.TaskName, "boundary", boundary.ID, "failure_kind", kind)

			return boundary.ID, true
		}
	}

	r.fail(kind, taskErr.Error())

	return "", false
}

// suspend parks the token past the suspending task and flips the
// execution to AwaitingInput until an external resume.
func (r *runner) suspend(ctx context.Context, token *models.Token, node *models.Node) {
	next := r.spec.Outgoing(node.ID)[0].To

	r.mu.Lock()
	token.NodeID = next
	r.parked = append(r.parked, token)

	if r.exec.Status == models.ExecutionStatusRunning {
		r.exec.Status = models.ExecutionStatusAwaitingInput
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Execution suspended awaiting input", "node_id", node.ID)
	r.engine.publish(ctx, r.exec.ID, events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, r.exec.ProcessName),
		ExecutionID: r.exec.ID,
		NodeID:      node.ID,
	})
}

func (r *runner) resume(ctx context.Context, input map[string]any) error {
	r.mu.Lock()

	if r.exec.Status.Terminal() {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrExecutionFinished, r.exec.ID)
	}

	if r.exec.Status != models.ExecutionStatusAwaitingInput {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrNotAwaitingInput, r.exec.ID)
	}

	r.exec.ApplyMutations(input)
	r.exec.Status = models.ExecutionStatusRunning

	tokens := r.parked
	r.parked = nil

	for _, token := range tokens {
		r.active++

		go r.run(token)
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Execution resumed")
	r.engine.publish(ctx, r.exec.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, r.exec.ProcessName),
		ExecutionID: r.exec.ID,
	})

	return nil
}

func (r *runner) abort(ctx context.Context, reason string) error {
	r.mu.Lock()

	if r.exec.Status.Terminal() {
		r.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrExecutionFinished, r.exec.ID)
	}

	r.exec.Status = models.ExecutionStatusAborted

	if reason != "" {
		r.exec.Metadata["abort_reason"] = reason
	}

	r.parked = nil
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Execution aborted", "reason", reason)
	r.cancel()
	r.maybeFinish()

	return nil
}

// fail records the first fatal error and halts the execution's remaining
// work. Later failures are ignored; the first one wins.
func (r *runner) fail(kind, detail string) {
	r.mu.Lock()

	if r.exec.Status == models.ExecutionStatusRunning || r.exec.Status == models.ExecutionStatusAwaitingInput {
		r.exec.Status = models.ExecutionStatusFailed
		r.exec.FailureKind = kind
		r.exec.FailureDetail = detail
		r.parked = nil
	}
	r.mu.Unlock()

	r.cancel()
}

func (r *runner) release(token *models.Token) {
	r.mu.Lock()

	if !r.parkedLocked(token) {
		for i, active := range r.exec.Tokens {
			if active.ID == token.ID {
				r.exec.Tokens = append(r.exec.Tokens[:i], r.exec.Tokens[i+1:]...)

				break
			}
		}
	}

	r.active--
	r.mu.Unlock()

	r.maybeFinish()
}

func (r *runner) parkedLocked(token *models.Token) bool {
	for _, parked := range r.parked {
		if parked.ID == token.ID {
			return true
		}
	}

	return false
}

// maybeFinish closes the execution once the last active token is gone. A
// suspended execution stays open for resume.
func (r *runner) maybeFinish() {
	r.mu.Lock()

	if r.finished || r.active > 0 {
		r.mu.Unlock()

		return
	}

	if r.exec.Status == models.ExecutionStatusAwaitingInput {
		r.mu.Unlock()

		return
	}

	if r.exec.Status == models.ExecutionStatusRunning {
		r.exec.Status = models.ExecutionStatusCompleted
	}

	if r.exec.FinishedAt == nil {
		finished := r.engine.now().UTC()
		r.exec.FinishedAt = &finished
	}

	r.finished = true
	r.mu.Unlock()

	r.finalize()
}

func (r *runner) finalize() {
	ctx := context.WithoutCancel(r.ctx)
	snapshot := r.snapshot()
	durationMs := snapshot.FinishedAt.Sub(snapshot.StartedAt).Milliseconds()

	outcome := models.RecordOutcomeSuccess

	var procErr error

	if snapshot.Status != models.ExecutionStatusCompleted {
		outcome = models.RecordOutcomeError
		procErr = fmt.Errorf("execution ended %s: %s", snapshot.Status, snapshot.FailureDetail)
	}

	if err := r.engine.recorder.End(ctx, r.procHandle, outcome,
		map[string]any{"status": string(snapshot.Status)}, procErr); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close execution record", "error", err)
	}

	switch snapshot.Status {
	case models.ExecutionStatusCompleted:
		r.logger.InfoContext(ctx, "Execution completed", "duration_ms", durationMs)
		r.engine.publish(ctx, snapshot.ID, events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, snapshot.ProcessName),
			ExecutionID: snapshot.ID,
			DurationMs:  durationMs,
			Result:      snapshot.Variables,
		})
	case models.ExecutionStatusFailed:
		r.logger.ErrorContext(ctx, "Execution failed",
			"failure_kind", snapshot.FailureKind, "failure_detail", snapshot.FailureDetail)
		r.engine.publish(ctx, snapshot.ID, events.ExecutionFailed{
			BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, snapshot.ProcessName),
			ExecutionID:   snapshot.ID,
			FailureKind:   snapshot.FailureKind,
			FailureDetail: snapshot.FailureDetail,
			DurationMs:    durationMs,
		})
	case models.ExecutionStatusAborted:
		reason, _ := snapshot.Metadata["abort_reason"].(string)
		r.engine.publish(ctx, snapshot.ID, events.ExecutionAborted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionAbortedEvent, snapshot.ProcessName),
			ExecutionID: snapshot.ID,
			Reason:      reason,
			DurationMs:  durationMs,
		})
	}

	if r.engine.archiver != nil {
		records, err := r.engine.recorder.RecordsFor(ctx, snapshot.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to load records for archive", "error", err)
		} else if err := r.engine.archiver.ArchiveExecution(ctx, snapshot, records); err != nil {
			r.logger.ErrorContext(ctx, "Failed to archive execution", "error", err)
		}
	}

	r.cancel()
	close(r.done)
}

// snapshot returns a deep-enough copy for read-only consumers.
func (r *runner) snapshot() *models.ExecutionContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *r.exec
	clone.Variables = r.exec.SnapshotVariables()

	clone.Tokens = make([]*models.Token, len(r.exec.Tokens))
	for i, token := range r.exec.Tokens {
		copied := *token
		clone.Tokens[i] = &copied
	}

	clone.Metadata = make(map[string]any, len(r.exec.Metadata))
	for k, v := range r.exec.Metadata {
		clone.Metadata[k] = v
	}

	return &clone
}
