package workflow

import (
	"context"
	"log/slog"

	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/persistence"
)

// Matcher finds workflows whose trigger configuration exactly matches the
// attributes derived from an inbound event.
type Matcher struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewMatcher(persistence persistence.Persistence, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: persistence,
		logger:      logger.With("module", "matcher"),
	}
}

// FindMatching returns enabled workflows of the given trigger type whose
// trigger config equals every attribute, with case-sensitive string equality.
// An empty result is a no-op signal, not an error.
func (m *Matcher) FindMatching(ctx context.Context, triggerType models.TriggerType, attrs map[string]string) ([]*models.Workflow, error) {
	candidates, err := m.persistence.WorkflowsByTrigger(ctx, triggerType)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, candidate := range candidates {
		// WorkflowsByTrigger already filters on enabled, but a persistence
		// backend is not trusted to enforce the eligibility invariant.
		if !candidate.Enabled || candidate.TriggerType != triggerType {
			continue
		}

		if matchesAttributes(candidate.TriggerConfig, attrs) {
			matches = append(matches, candidate)
		}
	}

	m.logger.InfoContext(ctx, "Completed trigger matching",
		"trigger_type", triggerType,
		"candidates", len(candidates),
		"matches", len(matches))

	return matches, nil
}

func matchesAttributes(triggerConfig, attrs map[string]string) bool {
	for key, want := range attrs {
		if triggerConfig[key] != want {
			return false
		}
	}

	return true
}
