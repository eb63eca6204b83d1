package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/eventbus"
	"github.com/regenera-io/regenera/pkg/events"
)

// Worker consumes execution requests from the event bus and feeds them to
// the engine.
type Worker struct {
	logger   *slog.Logger
	engine   *engine.Engine
	eventBus eventbus.EventBus
}

func NewWorker(logger *slog.Logger, eng *engine.Engine, eventBus eventbus.EventBus) *Worker {
	return &Worker{
		logger:   logger.With("module", "engine_worker"),
		engine:   eng,
		eventBus: eventBus,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Engine worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down engine worker")
	case <-ctx.Done():
	}

	return nil
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid payload for execution request")

		return nil
	}

	executionID, err := w.engine.Start(ctx, request.ProcessName, request.Variables)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to start execution",
			"process", request.ProcessName, "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Execution started",
		"process", request.ProcessName, "execution_id", executionID)

	return nil
}
