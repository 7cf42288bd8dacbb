package automation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastProfile returns a profile tuned for tests: minimal waits, cat as the
// interactive tool (reads stdin until EOF, like the real tool's session).
func fastProfile() *ToolProfile {
	return &ToolProfile{
		Name:                   "cat",
		Binary:                 "cat",
		WarmupSeconds:          1,
		SettleSeconds:          1,
		FreshnessWindowSeconds: 120,
		ExecTimeoutSeconds:     1,
		OutputBufferLines:      100,
		ArtifactPatterns:       []string{"*.py"},
		ExitCommand:            "exit",
	}
}

func touchWithAge(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSessionIDEmbedsSanitizedToolName(t *testing.T) {
	profile := fastProfile()
	profile.Name = "claude code/v2"

	d := NewDriver(profile, t.TempDir(), nil, nil)

	assert.True(t, strings.HasPrefix(d.SessionID(), "claude-code-v2-session-"), d.SessionID())
}

func TestDiscoverArtifactPicksNewestFresh(t *testing.T) {
	dir := t.TempDir()
	recent := touchWithAge(t, dir, "scraper.py", 10*time.Second)
	touchWithAge(t, dir, "old_scraper.py", 10*time.Minute)

	d := NewDriver(fastProfile(), dir, nil, nil)
	artifact, found := d.DiscoverArtifact()

	require.True(t, found)
	assert.Equal(t, recent, artifact)
	assert.Equal(t, StateFileFound, d.State())
}

func TestDiscoverArtifactRespectsFreshnessWindow(t *testing.T) {
	dir := t.TempDir()
	touchWithAge(t, dir, "stale.py", 10*time.Minute)

	profile := fastProfile()
	profile.FreshnessWindowSeconds = 120
	d := NewDriver(profile, dir, nil, nil)

	_, found := d.DiscoverArtifact()
	assert.False(t, found)
	assert.Equal(t, StateTimedOut, d.State())
}

func TestDiscoverArtifactExcludesOwnFiles(t *testing.T) {
	dir := t.TempDir()
	touchWithAge(t, dir, "driver_prompt.py", time.Second)
	wanted := touchWithAge(t, dir, "scraper.py", 2*time.Second)

	profile := fastProfile()
	profile.ExcludePatterns = []string{"driver_*"}
	d := NewDriver(profile, dir, nil, nil)

	artifact, found := d.DiscoverArtifact()
	require.True(t, found)
	assert.Equal(t, wanted, artifact)
}

func TestDiscoverArtifactEmptyDir(t *testing.T) {
	d := NewDriver(fastProfile(), t.TempDir(), nil, nil)
	artifact, found := d.DiscoverArtifact()
	assert.False(t, found)
	assert.Empty(t, artifact)
}

func TestStartFailureIsNonFatal(t *testing.T) {
	profile := fastProfile()
	profile.Binary = "/nonexistent/tool-binary"
	d := NewDriver(profile, t.TempDir(), nil, nil)

	ok := d.Start(context.Background())
	assert.False(t, ok)

	// Cleanup must be safe even when start failed.
	d.Cleanup()
	assert.Equal(t, StateCleanedUp, d.State())
}

func TestRunSessionArtifactNotFoundStillCleansUp(t *testing.T) {
	d := NewDriver(fastProfile(), t.TempDir(), nil, nil)

	result := d.RunSession(context.Background(), "generate a scraper")

	assert.False(t, result.OK)
	assert.Equal(t, FailureArtifactNotFound, result.Reason)
	assert.Equal(t, StateCleanedUp, d.State())
	assert.False(t, d.ProcessAlive(), "process must be dead after cleanup")
}

func TestRunSessionDiscoversAndExecutes(t *testing.T) {
	dir := t.TempDir()
	profile := fastProfile()
	profile.ArtifactPatterns = []string{"*.sh"}
	d := NewDriver(profile, dir, nil, nil)

	// Simulate the tool having produced an artifact during the settle wait.
	script := filepath.Join(dir, "generated.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho done\n"), 0755))

	result := d.RunSession(context.Background(), "generate")

	require.True(t, result.OK)
	assert.Equal(t, script, result.Artifact)
	assert.Equal(t, ExecRan, result.Exec.Status)
	assert.Contains(t, result.Exec.Output, "done")
	assert.Equal(t, StateCleanedUp, d.State())
	assert.False(t, d.ProcessAlive())
}

func TestCleanupIdempotent(t *testing.T) {
	d := NewDriver(fastProfile(), t.TempDir(), nil, nil)
	require.True(t, d.Start(context.Background()))

	d.Cleanup()
	d.Cleanup()
	assert.Equal(t, StateCleanedUp, d.State())
	assert.False(t, d.ProcessAlive())
}

func TestReaderForwardsOutput(t *testing.T) {
	profile := fastProfile()
	profile.Binary = "echo"
	profile.Args = []string{"ready banner"}

	var sunk []string
	d := NewDriver(profile, t.TempDir(), func(line string) { sunk = append(sunk, line) }, nil)
	require.True(t, d.Start(context.Background()))

	select {
	case line := <-d.Lines():
		assert.Equal(t, "ready banner", line)
	case <-time.After(3 * time.Second):
		t.Fatal("no output line received")
	}

	// Cleanup joins the reader, so the sink slice is safe to inspect after.
	d.Cleanup()
	assert.Contains(t, d.OutputTail(), "ready banner")
	assert.Equal(t, []string{"ready banner"}, sunk)
}
