// Package github parses GitHub webhook payloads into trigger attributes.
package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/guildflow/guildflow/pkg/models"
)

const branchRefPrefix = "refs/heads/"

// ErrNotMatchable marks push events that must be silently skipped rather than
// matched against stored workflows: branch deletions and payloads lacking a
// repository or ref.
var ErrNotMatchable = errors.New("push event is not matchable")

// PushEvent is the subset of a GitHub push payload the matcher and template
// contexts care about.
type PushEvent struct {
	Ref        string     `json:"ref"`
	Deleted    bool       `json:"deleted"`
	Compare    string     `json:"compare"`
	Repository Repository `json:"repository"`
	Pusher     Pusher     `json:"pusher"`
	HeadCommit *Commit    `json:"head_commit"`
	Commits    []Commit   `json:"commits"`
}

type Repository struct {
	FullName string `json:"full_name"`
}

type Pusher struct {
	Name string `json:"name"`
}

type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ParsePush decodes a raw webhook body into a PushEvent.
func ParsePush(body []byte) (*PushEvent, error) {
	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode push payload: %w", err)
	}

	return &event, nil
}

// Branch returns the branch name with the leading ref prefix stripped.
func (e *PushEvent) Branch() string {
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

// TriggerAttributes derives the attribute map the workflow matcher compares
// against trigger configs. Branch deletions and payloads without a repository
// or ref return ErrNotMatchable and never reach matching.
func (e *PushEvent) TriggerAttributes() (map[string]string, error) {
	if e.Deleted {
		return nil, fmt.Errorf("%w: branch deletion", ErrNotMatchable)
	}

	if e.Repository.FullName == "" || e.Ref == "" {
		return nil, fmt.Errorf("%w: missing repository or ref", ErrNotMatchable)
	}

	return map[string]string{
		models.TriggerConfigRepo:   e.Repository.FullName,
		models.TriggerConfigBranch: e.Branch(),
	}, nil
}
