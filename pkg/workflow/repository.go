// Package workflow implements storage access and trigger matching for
// automation rules.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/persistence"
)

type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create persists a new workflow with a server-assigned ID and timestamps.
// Trigger and action configs are validated against their type schemas first.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := workflow.ValidateConfigs(); err != nil {
		return nil, err
	}

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	err := r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// SetEnabled toggles the only mutable field of a persisted workflow.
func (r *Repository) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Workflow, error) {
	workflow, err := r.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Enabled = enabled
	workflow.UpdatedAt = time.Now().UTC()

	err = r.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	existing, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	if existing == nil {
		return persistence.ErrWorkflowNotFound
	}

	return r.persistence.DeleteWorkflow(ctx, id)
}
