package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAlternation(t *testing.T) {
	system, merged, err := ensureAlternation([]CompletionMessage{
		NewSystemMessage("be helpful"),
		NewUserMessage("first"),
		NewUserMessage("second"),
		{Role: RoleAssistant, Content: "reply"},
		NewUserMessage("third"),
	})
	require.NoError(t, err)

	assert.Equal(t, "be helpful", system)
	require.Len(t, merged, 3)
	assert.Equal(t, RoleUser, merged[0].Role)
	assert.Equal(t, "first\n\nsecond", merged[0].Content)
	assert.Equal(t, RoleAssistant, merged[1].Role)
	assert.Equal(t, RoleUser, merged[2].Role)
}

func TestEnsureAlternationRejectsEmpty(t *testing.T) {
	_, _, err := ensureAlternation(nil)
	assert.Error(t, err)

	_, _, err = ensureAlternation([]CompletionMessage{NewSystemMessage("only system")})
	assert.Error(t, err)
}

func TestEnsureAlternationRejectsAssistantTail(t *testing.T) {
	_, _, err := ensureAlternation([]CompletionMessage{
		NewUserMessage("hello"),
		{Role: RoleAssistant, Content: "reply"},
	})
	assert.Error(t, err)
}

func TestApplyJSONInstruction(t *testing.T) {
	// Appended to an existing system message.
	req := CompletionRequest{
		ForceJSON: true,
		Messages: []CompletionMessage{
			NewSystemMessage("analyze this"),
			NewUserMessage("hi"),
		},
	}
	out := applyJSONInstruction(req)
	assert.Contains(t, out.Messages[0].Content, "analyze this")
	assert.Contains(t, out.Messages[0].Content, "valid JSON")

	// Inserted when no system message exists.
	req = CompletionRequest{
		ForceJSON: true,
		Messages:  []CompletionMessage{NewUserMessage("hi")},
	}
	out = applyJSONInstruction(req)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, RoleSystem, out.Messages[0].Role)

	// No-op without ForceJSON.
	req = CompletionRequest{Messages: []CompletionMessage{NewUserMessage("hi")}}
	out = applyJSONInstruction(req)
	require.Len(t, out.Messages, 1)
}
