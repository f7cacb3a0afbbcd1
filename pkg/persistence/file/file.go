// Package file provides JSON file-backed persistence, used for local
// development and as the in-memory-equivalent fixture in tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/persistence"
)

const workflowFileMode = 0o644

type Persistence struct {
	root string
}

// NewPersistence stores each workflow as <root>/workflows/<id>.json.
func NewPersistence(root string) *Persistence {
	root = strings.TrimPrefix(root, "file://")

	return &Persistence{root: root}
}

func (p *Persistence) workflowsDir() string {
	return filepath.Join(p.root, "workflows")
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.workflowsDir(), id+".json")
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(p.workflowsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Workflow{}, nil
		}

		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		workflow, err := p.readWorkflow(filepath.Join(p.workflowsDir(), entry.Name()))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := p.readWorkflow(p.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	return workflow, nil
}

func (p *Persistence) WorkflowsByTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	all, err := p.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.Enabled && workflow.TriggerType == triggerType {
			matching = append(matching, workflow)
		}
	}

	return matching, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if err := os.MkdirAll(p.workflowsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	err = os.WriteFile(p.workflowPath(workflow.ID), data, workflowFileMode)
	if err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	err := os.Remove(p.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrWorkflowNotFound
		}

		return fmt.Errorf("failed to delete workflow file: %w", err)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("persistence root %q is not a directory", p.root)
	}

	return nil
}

func (p *Persistence) Close(ctx context.Context) error {
	return nil
}

func (p *Persistence) readWorkflow(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %q: %w", path, err)
	}

	return &workflow, nil
}
