package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.Append("session-1", EventSessionStart, "goose started"))
	require.NoError(t, w.Append("session-1", EventToolOutput, "working on it"))
	require.NoError(t, w.Append("session-1", EventOutcome, "generated"))

	filename := filepath.Join(dir, "sessions-"+time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}

	require.Len(t, events, 3)
	assert.Equal(t, EventSessionStart, events[0].Type)
	assert.Equal(t, "session-1", events[0].SessionID)
	assert.Equal(t, "generated", events[2].Detail)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestWriterCloseIdempotent(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWriterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
