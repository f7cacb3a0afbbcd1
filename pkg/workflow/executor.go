package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildflow/guildflow/pkg/conversation"
	"github.com/guildflow/guildflow/pkg/eventbus"
	"github.com/guildflow/guildflow/pkg/events"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/github"
	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/otelhelper"
	"github.com/guildflow/guildflow/pkg/template"
	"github.com/guildflow/guildflow/pkg/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Poster delivers the generated summary to a channel.
type Poster interface {
	PostMessage(ctx context.Context, channelID, content string) error
}

// NotifierFactory builds a tool-progress notifier bound to a channel.
type NotifierFactory func(channelID string) conversation.Notifier

// Executor turns a validated push payload into channel messages: it matches
// workflows, renders their prompts, runs the generation loop and posts the
// result. Each matched workflow executes independently; one failure never
// stops the others.
type Executor struct {
	matcher     *Matcher
	client      genai.Client
	registry    *tools.Registry
	invoker     *tools.Invoker
	poster      Poster
	notifierFor NotifierFactory
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewExecutor(
	matcher *Matcher,
	client genai.Client,
	registry *tools.Registry,
	invoker *tools.Invoker,
	poster Poster,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		matcher:  matcher,
		client:   client,
		registry: registry,
		invoker:  invoker,
		poster:   poster,
		eventBus: eventBus,
		tracer:   noop.NewTracerProvider().Tracer("executor"),
		logger:   logger.With("module", "executor"),
	}
}

// WithNotifierFactory enables per-channel tool progress messages.
func (e *Executor) WithNotifierFactory(factory NotifierFactory) *Executor {
	e.notifierFor = factory

	return e
}

// WithTracer replaces the no-op tracer.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// HandlePush is the event bus handler for accepted push deliveries.
func (e *Executor) HandlePush(ctx context.Context, event any) error {
	received, ok := event.(*events.PushReceived)
	if !ok {
		return fmt.Errorf("unexpected event payload type %T", event)
	}

	return e.ProcessPush(ctx, received.Payload)
}

// ProcessPush matches and executes all workflows for one push payload.
// Non-matchable pushes (branch deletions, malformed refs) are skipped quietly.
func (e *Executor) ProcessPush(ctx context.Context, payload json.RawMessage) error {
	push, err := github.ParsePush(payload)
	if err != nil {
		return fmt.Errorf("failed to parse push payload: %w", err)
	}

	attrs, err := push.TriggerAttributes()
	if errors.Is(err, github.ErrNotMatchable) {
		e.logger.DebugContext(ctx, "Skipping non-matchable push", "reason", err)

		return nil
	}

	if err != nil {
		return err
	}

	matches, err := e.matcher.FindMatching(ctx, models.TriggerTypeRepoPush, attrs)
	if err != nil {
		return fmt.Errorf("trigger matching failed: %w", err)
	}

	for _, wf := range matches {
		if err := e.executeWorkflow(ctx, wf, push, attrs); err != nil {
			e.logger.ErrorContext(ctx, "Workflow execution failed",
				"workflow_id", wf.ID,
				"workflow_name", wf.Name,
				"error", err)

			e.publish(ctx, wf.ID, &events.WorkflowFailed{
				WorkflowID: wf.ID,
				Error:      err.Error(),
			})
		}
	}

	return nil
}

func (e *Executor) executeWorkflow(ctx context.Context, wf *models.Workflow, push *github.PushEvent, attrs map[string]string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.execute_workflow",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name),
		attribute.String(otelhelper.TriggerTypeKey, string(wf.TriggerType)),
		attribute.String(otelhelper.RepoKey, push.Repository.FullName),
		attribute.String(otelhelper.BranchKey, push.Branch()),
	)
	defer span.End()

	if err := e.runWorkflow(ctx, wf, attrs, push); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func (e *Executor) runWorkflow(ctx context.Context, wf *models.Workflow, attrs map[string]string, push *github.PushEvent) error {
	start := time.Now()

	e.publish(ctx, wf.ID, &events.WorkflowTriggered{
		WorkflowID:        wf.ID,
		WorkflowName:      wf.Name,
		TriggerAttributes: attrs,
	})

	channelID := wf.ActionConfig[models.ActionConfigTargetChannelID]
	if channelID == "" {
		return errors.New("workflow has no target channel configured")
	}

	promptTemplate := wf.ActionConfig[models.ActionConfigPromptTemplate]
	if promptTemplate == "" {
		return errors.New("workflow has no prompt template configured")
	}

	promptContext, err := template.NewPushContext(push)
	if err != nil {
		return fmt.Errorf("failed to build template context: %w", err)
	}

	prompt := template.Render(promptTemplate, promptContext.Map())

	runner := conversation.NewRunner(e.client, e.registry, e.invoker, e.logger)
	if e.notifierFor != nil {
		runner = runner.WithNotifier(e.notifierFor(channelID))
	}

	answer, err := runner.Run(ctx, []genai.Turn{genai.UserText(prompt)})
	if err != nil {
		e.postFailureNotice(ctx, channelID)

		return fmt.Errorf("generation failed: %w", err)
	}

	if err := e.poster.PostMessage(ctx, channelID, answer); err != nil {
		return fmt.Errorf("failed to post to channel %s: %w", channelID, err)
	}

	e.logger.InfoContext(ctx, "Workflow completed",
		"workflow_id", wf.ID,
		"workflow_name", wf.Name,
		"channel_id", channelID,
		"duration", time.Since(start))

	e.publish(ctx, wf.ID, &events.WorkflowCompleted{
		WorkflowID: wf.ID,
		ChannelID:  channelID,
		Duration:   time.Since(start),
	})

	return nil
}

// postFailureNotice tells the channel nothing could be generated, so a
// configured workflow never fails invisibly. Best-effort.
func (e *Executor) postFailureNotice(ctx context.Context, channelID string) {
	const notice = "No response could be generated for this event."

	if err := e.poster.PostMessage(ctx, channelID, notice); err != nil {
		e.logger.WarnContext(ctx, "Failed to post failure notice", "channel_id", channelID, "error", err)
	}
}

// publish is best-effort: lifecycle events are observability, not control flow.
func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err)
	}
}
