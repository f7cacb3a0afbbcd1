package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/guildflow/guildflow/pkg/eventbus"
	"github.com/guildflow/guildflow/pkg/events"
	"github.com/guildflow/guildflow/pkg/workflow"
)

// WorkerManager consumes accepted push deliveries and runs the matched
// workflows until the process is signalled to stop.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	executor *workflow.Executor
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	executor *workflow.Executor,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "guildflow-worker", "worker_id", id),
		executor: executor,
		eventBus: eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	w.eventBus.Handle(events.PushReceivedEvent, w.handlePushReceived)

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handlePushReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.PushReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for PushReceived")

		return nil
	}

	logger := w.logger.With("delivery_id", received.DeliveryID, "event_id", received.ID)
	logger.InfoContext(ctx, "Processing push received event")

	if err := w.executor.ProcessPush(ctx, received.Payload); err != nil {
		logger.ErrorContext(ctx, "Failed to process push", "error", err)

		return err
	}

	return nil
}
