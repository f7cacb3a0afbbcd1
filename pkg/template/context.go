package template

import (
	"fmt"
	"strconv"

	"github.com/guildflow/guildflow/pkg/github"
)

// PushContext is the typed template context for repo_push triggers. Building
// it from the event at construction time catches missing fields before
// rendering, instead of silently leaving placeholders unresolved.
type PushContext struct {
	Repo        string
	Branch      string
	Pusher      string
	CommitCount int
	HeadMessage string
	CompareURL  string
}

// NewPushContext derives a context from a parsed push event. It fails for
// events that cannot be matched in the first place.
func NewPushContext(event *github.PushEvent) (*PushContext, error) {
	if event.Repository.FullName == "" || event.Ref == "" {
		return nil, fmt.Errorf("push event lacks repository or ref")
	}

	ctx := &PushContext{
		Repo:        event.Repository.FullName,
		Branch:      event.Branch(),
		Pusher:      event.Pusher.Name,
		CommitCount: len(event.Commits),
		CompareURL:  event.Compare,
	}

	if event.HeadCommit != nil {
		ctx.HeadMessage = event.HeadCommit.Message
	}

	return ctx, nil
}

// Map returns the placeholder keys available to prompt templates.
func (c *PushContext) Map() map[string]string {
	return map[string]string{
		"repo":         c.Repo,
		"branch":       c.Branch,
		"pusher":       c.Pusher,
		"commit_count": strconv.Itoa(c.CommitCount),
		"head_message": c.HeadMessage,
		"compare_url":  c.CompareURL,
	}
}
