package automation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"metagent/pkg/eventlog"
)

// ExecStatus classifies the outcome of running a discovered artifact.
type ExecStatus string

const (
	// ExecRan means the artifact ran and exited within the timeout.
	ExecRan ExecStatus = "executed"
	// ExecInteractive means the artifact was still running at the timeout
	// and was left running as an intentionally interactive program. This
	// counts as success.
	ExecInteractive ExecStatus = "interactive"
	// ExecSkipped means the extension has no known runner.
	ExecSkipped ExecStatus = "execution_skipped"
	// ExecFailed means the artifact exited with an error.
	ExecFailed ExecStatus = "execution_failed"
)

// ExecResult reports what happened when an artifact was executed.
type ExecResult struct {
	Status ExecStatus
	Output string
	Err    error
}

// execBuffer captures combined stdout/stderr. Interactive programs are left
// running, so exec.Cmd's copy goroutine may still be writing when the output
// snapshot is taken; both paths go through the mutex.
type execBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *execBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *execBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// interpreters maps artifact extensions to their runners.
//
//nolint:gochecknoglobals // Static dispatch table
var interpreters = map[string]string{
	".py": "python3",
	".js": "node",
	".rb": "ruby",
	".sh": "bash",
}

// Execute runs a discovered artifact, dispatching on its extension.
// Execution has a short timeout to capture immediate output; a process
// still running afterward is treated as interactive and left alone.
// Execution failure never invalidates the generation itself.
func (d *Driver) Execute(ctx context.Context, artifact string) ExecResult {
	ext := strings.ToLower(filepath.Ext(artifact))

	var cmd *exec.Cmd
	switch {
	case interpreters[ext] != "":
		cmd = exec.Command(interpreters[ext], artifact) //nolint:gosec // Interpreter from static table
	case ext == ".html":
		cmd = exec.Command(browserOpener(), artifact) //nolint:gosec // Opener from static table
	default:
		d.setState(StateExecutionSkipped)
		d.logEvent(eventlog.EventExecution, "skipped: "+artifact)
		return ExecResult{
			Status: ExecSkipped,
			Err:    fmt.Errorf("cannot execute %s: no runner for %q files", artifact, ext),
		}
	}

	cmd.Dir = d.workDir
	output := &execBuffer{}
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		d.setState(StateExecutionFailed)
		d.logEvent(eventlog.EventExecution, "start failed: "+artifact)
		return ExecResult{Status: ExecFailed, Err: fmt.Errorf("failed to start %s: %w", artifact, err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			d.setState(StateExecutionFailed)
			d.logEvent(eventlog.EventExecution, "failed: "+artifact)
			return ExecResult{Status: ExecFailed, Output: output.String(), Err: fmt.Errorf("%s exited with error: %w", artifact, err)}
		}
		d.setState(StateExecuted)
		d.logEvent(eventlog.EventExecution, "ran: "+artifact)
		return ExecResult{Status: ExecRan, Output: output.String()}

	case <-time.After(d.profile.execTimeout()):
		// Still running: an interactive program, not a failure.
		d.setState(StateExecuted)
		d.logEvent(eventlog.EventExecution, "interactive: "+artifact)
		return ExecResult{Status: ExecInteractive, Output: output.String()}

	case <-ctx.Done():
		_ = cmd.Process.Kill()
		d.setState(StateExecutionFailed)
		return ExecResult{Status: ExecFailed, Output: output.String(), Err: ctx.Err()}
	}
}

func browserOpener() string {
	if runtime.GOOS == "darwin" {
		return "open"
	}
	return "xdg-open"
}
