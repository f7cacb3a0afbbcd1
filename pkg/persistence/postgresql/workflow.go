package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , guild_id
  , name
  , trigger_type
  , trigger_config
  , action_type
  , action_config
  , created_by
  , is_enabled
  , created_at
  , updated_at
`

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	return r.collectWorkflows(ctx, rows)
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetEnabledByTrigger returns only workflows eligible for matching.
func (r *WorkflowRepository) GetEnabledByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE trigger_type = $1 AND is_enabled = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(triggerType))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows by trigger: %w", err)
	}

	return r.collectWorkflows(ctx, rows)
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	triggerConfig, err := json.Marshal(workflow.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	actionConfig, err := json.Marshal(workflow.ActionConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal action config: %w", err)
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			guild_id       = EXCLUDED.guild_id
		  , name           = EXCLUDED.name
		  , trigger_type   = EXCLUDED.trigger_type
		  , trigger_config = EXCLUDED.trigger_config
		  , action_type    = EXCLUDED.action_type
		  , action_config  = EXCLUDED.action_config
		  , created_by     = EXCLUDED.created_by
		  , is_enabled     = EXCLUDED.is_enabled
		  , updated_at     = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.GuildID,
		workflow.Name,
		string(workflow.TriggerType),
		triggerConfig,
		string(workflow.ActionType),
		actionConfig,
		workflow.CreatedBy,
		workflow.Enabled,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		triggerType   string
		actionType    string
		triggerConfig []byte
		actionConfig  []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.GuildID,
		&workflow.Name,
		&triggerType,
		&triggerConfig,
		&actionType,
		&actionConfig,
		&workflow.CreatedBy,
		&workflow.Enabled,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.TriggerType = models.TriggerType(triggerType)
	workflow.ActionType = models.ActionType(actionType)

	if err := json.Unmarshal(triggerConfig, &workflow.TriggerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	if err := json.Unmarshal(actionConfig, &workflow.ActionConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action config: %w", err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) collectWorkflows(ctx context.Context, rows *sql.Rows) ([]*models.Workflow, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}
