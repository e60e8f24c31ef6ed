package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satyam-ai-go/internal/model"
)

func turns(contents ...string) []model.ChatTurn {
	out := make([]model.ChatTurn, 0, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAI
		}
		out = append(out, model.ChatTurn{Role: role, Content: c})
	}
	return out
}

func TestRewriteWithoutHistorySkipsModel(t *testing.T) {
	llmClient := &fakeLLM{}
	r := NewQueryRewriter(llmClient, 4)

	assert.Equal(t, "What is the punishment?", r.Rewrite(context.Background(), "What is the punishment?", nil))
	assert.Zero(t, llmClient.count())
}

func TestRewriteUsesRecentHistory(t *testing.T) {
	llmClient := &fakeLLM{reply: func(_, _ string) (string, error) {
		return "  \"What is the punishment for murder under Section 302 IPC?\"\n", nil
	}}
	r := NewQueryRewriter(llmClient, 4)

	history := turns("first", "second", "What is Section 302?", "It defines murder.", "And 304?", "Culpable homicide.")
	out := r.Rewrite(context.Background(), "What is the punishment?", history)

	assert.Equal(t, "What is the punishment for murder under Section 302 IPC?", out)
	require.Equal(t, 1, llmClient.count())
	call := llmClient.last()
	assert.Equal(t, rewriteSystemPrompt, call.system)
	assert.Contains(t, call.user, "User: What is Section 302?")
	assert.Contains(t, call.user, "AI: Culpable homicide.")
	assert.NotContains(t, call.user, "second")
	assert.Contains(t, call.user, "CURRENT QUERY:\nWhat is the punishment?")
}

func TestRewriteFailsOpen(t *testing.T) {
	failing := &fakeLLM{reply: func(_, _ string) (string, error) { return "", errors.New("boom") }}
	assert.Equal(t, "Tell me more", NewQueryRewriter(failing, 4).Rewrite(context.Background(), "Tell me more", turns("a", "b")))

	blank := &fakeLLM{reply: func(_, _ string) (string, error) { return "  \"\" ", nil }}
	assert.Equal(t, "Tell me more", NewQueryRewriter(blank, 0).Rewrite(context.Background(), "Tell me more", turns("a")))
}
