// Package persistence provides the data storage abstraction for workflows.
package persistence

import (
	"context"

	"github.com/guildflow/guildflow/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// WorkflowsByTrigger returns enabled workflows with the given trigger type.
	WorkflowsByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
