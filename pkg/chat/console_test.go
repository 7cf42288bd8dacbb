package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSendAndEdit(t *testing.T) {
	var buf strings.Builder
	c := NewConsoleTransportWithWriter(&buf)

	ref, err := c.SendText(context.Background(), 42, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ref.ChatID)
	assert.Equal(t, int64(1), ref.MessageID)

	require.NoError(t, c.EditText(context.Background(), ref, "updated"))
	require.NoError(t, c.AnswerCallback(context.Background(), "q1"))

	out := buf.String()
	assert.Contains(t, out, "[chat 42] hello")
	assert.Contains(t, out, "(edit #1) updated")
}

func TestFakeTransportRecords(t *testing.T) {
	f := NewFake()

	ref, err := f.SendText(context.Background(), 1, "first")
	require.NoError(t, err)
	require.NoError(t, f.EditText(context.Background(), ref, "second"))
	require.NoError(t, f.AnswerCallback(context.Background(), "cb-1"))

	assert.Equal(t, []string{"first", "second"}, f.Texts())
	assert.Equal(t, "second", f.LastText())
	assert.True(t, f.Messages[1].Edited)
	assert.Equal(t, []string{"cb-1"}, f.Acked)
}
