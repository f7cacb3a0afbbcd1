package template

import (
	"testing"

	"github.com/guildflow/guildflow/pkg/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Substitution(t *testing.T) {
	context := map[string]string{
		"repo":   "a/b",
		"branch": "main",
	}

	result := Render("New push to {{repo}} on {{branch}}. Summarize {{repo}}.", context)

	assert.Equal(t, "New push to a/b on main. Summarize a/b.", result)
}

func TestRender_UnknownKeysLeftLiteral(t *testing.T) {
	context := map[string]string{"repo": "a/b"}

	result := Render("{{repo}} pushed by {{pusher}}", context)

	assert.Equal(t, "a/b pushed by {{pusher}}", result)
}

func TestRender_EmptyContextIsIdentity(t *testing.T) {
	templateStr := "Summarize the push to {{repo}} on {{branch}}."

	assert.Equal(t, templateStr, Render(templateStr, nil))
	assert.Equal(t, templateStr, Render(templateStr, map[string]string{}))
}

func TestRender_Deterministic(t *testing.T) {
	context := map[string]string{"a": "1", "b": "2", "c": "3"}
	templateStr := "{{a}}{{b}}{{c}}{{a}}"

	first := Render(templateStr, context)
	for range 10 {
		assert.Equal(t, first, Render(templateStr, context))
	}
}

func TestRender_NoRecursiveSubstitution(t *testing.T) {
	context := map[string]string{
		"repo":   "{{branch}}",
		"branch": "main",
	}

	// A substituted value containing a placeholder stays literal.
	result := Render("{{repo}}", context)

	assert.Equal(t, "{{branch}}", result)
}

func TestNewPushContext(t *testing.T) {
	event := &github.PushEvent{
		Ref:        "refs/heads/main",
		Compare:    "https://github.com/a/b/compare/x...y",
		Repository: github.Repository{FullName: "a/b"},
		Pusher:     github.Pusher{Name: "octocat"},
		HeadCommit: &github.Commit{ID: "def", Message: "tighten matcher"},
		Commits:    []github.Commit{{ID: "abc"}, {ID: "def"}},
	}

	ctx, err := NewPushContext(event)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"repo":         "a/b",
		"branch":       "main",
		"pusher":       "octocat",
		"commit_count": "2",
		"head_message": "tighten matcher",
		"compare_url":  "https://github.com/a/b/compare/x...y",
	}, ctx.Map())
}

func TestNewPushContext_MissingRepository(t *testing.T) {
	_, err := NewPushContext(&github.PushEvent{Ref: "refs/heads/main"})
	assert.Error(t, err)
}
