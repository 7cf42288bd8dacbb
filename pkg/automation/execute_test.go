package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteUnknownExtensionIsExplicit(t *testing.T) {
	d := NewDriver(fastProfile(), t.TempDir(), nil, nil)

	result := d.Execute(context.Background(), "artifact.xyz")

	assert.Equal(t, ExecSkipped, result.Status)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "cannot execute")
	assert.Equal(t, StateExecutionSkipped, d.State())
}

func TestExecuteShellScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo executed output\n"), 0755))

	d := NewDriver(fastProfile(), dir, nil, nil)
	result := d.Execute(context.Background(), script)

	assert.Equal(t, ExecRan, result.Status)
	assert.Contains(t, result.Output, "executed output")
}

func TestExecuteFailingScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo boom >&2\nexit 3\n"), 0755))

	d := NewDriver(fastProfile(), dir, nil, nil)
	result := d.Execute(context.Background(), script)

	assert.Equal(t, ExecFailed, result.Status)
	assert.Contains(t, result.Output, "boom")
	require.Error(t, result.Err)
}

func TestExecuteInteractiveOutputWhileStillWriting(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "chatty.sh")
	// Keeps printing past the 1s exec timeout, then exits on its own so the
	// test leaves no process behind.
	require.NoError(t, os.WriteFile(script,
		[]byte("for i in $(seq 1 300); do echo tick $i; sleep 0.01; done\n"), 0755))

	d := NewDriver(fastProfile(), dir, nil, nil)
	result := d.Execute(context.Background(), script)

	assert.Equal(t, ExecInteractive, result.Status)
	assert.Contains(t, result.Output, "tick", "output written before the timeout is captured")
}

func TestExecuteInteractiveLeftRunning(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "interactive.sh")
	// Sleeps past the 1s exec timeout, then exits on its own.
	require.NoError(t, os.WriteFile(script, []byte("sleep 2\n"), 0755))

	d := NewDriver(fastProfile(), dir, nil, nil)
	result := d.Execute(context.Background(), script)

	assert.Equal(t, ExecInteractive, result.Status, "still-running program is a success, not a failure")
	assert.NoError(t, result.Err)
}
