package automation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"metagent/pkg/eventlog"
	"metagent/pkg/logx"
	"metagent/pkg/utils"
)

// State tracks the session's position in the driver state machine. The
// terminal state is always StateCleanedUp.
type State string

const (
	StateNotStarted        State = "not_started"
	StateSessionStarted    State = "session_started"
	StatePromptSent        State = "prompt_sent"
	StateWaitingGeneration State = "waiting_generation"
	StateFileFound         State = "file_found"
	StateTimedOut          State = "timed_out"
	StateExecuted          State = "executed"
	StateExecutionSkipped  State = "execution_skipped"
	StateExecutionFailed   State = "execution_failed"
	StateCleanedUp         State = "cleaned_up"
)

// ProgressSink receives each output line from the tool as it appears.
type ProgressSink func(line string)

// Driver owns one automation session: exactly one external process, one
// background reader goroutine, and the artifact it may produce. A Driver is
// single-use; create a new one per session.
type Driver struct {
	profile   *ToolProfile
	workDir   string
	sessionID string
	logger    *logx.Logger
	events    *eventlog.Writer
	sink      ProgressSink

	cmd   *exec.Cmd
	stdin io.WriteCloser

	monitoring atomic.Bool
	readerDone chan struct{}

	// lines is the bounded channel fed by the reader goroutine. When full,
	// new lines are dropped rather than blocking the reader.
	lines chan string

	bufMu  sync.Mutex
	buffer []string

	stateMu sync.Mutex
	state   State

	cleanupOnce sync.Once
}

// NewDriver creates a driver for one session in workDir. events and sink may
// be nil. The session ID embeds the tool name, sanitized since profile names
// are free-text YAML and the ID appears in event-log entries.
func NewDriver(profile *ToolProfile, workDir string, sink ProgressSink, events *eventlog.Writer) *Driver {
	return &Driver{
		profile:   profile,
		workDir:   workDir,
		sessionID: utils.SanitizeIdentifier(profile.Name) + "-" + utils.NewSessionID(),
		logger:    logx.NewLogger("automation"),
		events:    events,
		sink:      sink,
		lines:     make(chan string, profile.OutputBufferLines),
		state:     StateNotStarted,
	}
}

// SessionID returns this session's unique identifier.
func (d *Driver) SessionID() string {
	return d.sessionID
}

// State returns the current session state.
func (d *Driver) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

func (d *Driver) logEvent(eventType, detail string) {
	if d.events == nil {
		return
	}
	if err := d.events.Append(d.sessionID, eventType, detail); err != nil {
		d.logger.Warn("event log write failed: %v", err)
	}
}

// Start spawns the external process with stdout and stderr merged, launches
// the background reader, and waits the warm-up interval so the tool can
// print its ready banner before accepting input. Start failure is non-fatal
// to the caller: it returns false rather than an error.
func (d *Driver) Start(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, d.profile.Binary, d.profile.Args...) //nolint:gosec // Binary comes from operator config
	cmd.Dir = d.workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		d.logger.Error("failed to open stdin pipe: %v", err)
		return false
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		d.logger.Error("failed to create output pipe: %v", err)
		return false
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		d.logger.Error("failed to start %s: %v", d.profile.Binary, err)
		return false
	}
	// Parent's write end must close so the reader sees EOF when the child
	// exits.
	_ = pw.Close()

	d.cmd = cmd
	d.stdin = stdin
	d.monitoring.Store(true)
	d.readerDone = make(chan struct{})
	go d.readOutput(pr)

	d.logger.Info("started %s (pid %d), warming up %s", d.profile.Binary, cmd.Process.Pid, d.profile.warmup())
	d.logEvent(eventlog.EventSessionStart, fmt.Sprintf("%s pid=%d", d.profile.Binary, cmd.Process.Pid))

	select {
	case <-ctx.Done():
		return false
	case <-time.After(d.profile.warmup()):
	}

	d.setState(StateSessionStarted)
	return true
}

// readOutput drains the merged output stream line by line until EOF or the
// monitoring flag drops. Lines go to the bounded buffer, the lines channel,
// and the progress sink; a full channel drops the line instead of blocking.
func (d *Driver) readOutput(r io.ReadCloser) {
	defer close(d.readerDone)
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if !d.monitoring.Load() {
			return
		}
		line := scanner.Text()

		d.bufMu.Lock()
		d.buffer = append(d.buffer, line)
		if len(d.buffer) > d.profile.OutputBufferLines {
			d.buffer = d.buffer[1:]
		}
		d.bufMu.Unlock()

		select {
		case d.lines <- line:
		default:
		}

		if d.sink != nil {
			d.sink(line)
		}
		d.logger.Debug("tool: %s", line)
	}
}

// Send writes the full prompt followed by a newline, then sleeps the settle
// interval. The tool signals completion only through filesystem side
// effects, so the settle delay is the only honest wait available. Returns
// false on write failure.
func (d *Driver) Send(ctx context.Context, prompt string) bool {
	if d.stdin == nil {
		d.logger.Error("send called before start")
		return false
	}

	if _, err := io.WriteString(d.stdin, prompt+"\n"); err != nil {
		d.logger.Error("failed to write prompt: %v", err)
		return false
	}
	d.setState(StatePromptSent)
	d.logEvent(eventlog.EventPromptSent, fmt.Sprintf("%d bytes", len(prompt)))

	d.setState(StateWaitingGeneration)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d.profile.settle()):
	}
	return true
}

// DiscoverArtifact globs the working directory for the profile's artifact
// patterns, skips excluded files, and among files modified within the
// freshness window returns the most recently modified one.
func (d *Driver) DiscoverArtifact() (string, bool) {
	type candidate struct {
		path    string
		modTime time.Time
	}

	cutoff := time.Now().Add(-d.profile.freshnessWindow())
	var candidates []candidate

	for _, pattern := range d.profile.ArtifactPatterns {
		matches, err := filepath.Glob(filepath.Join(d.workDir, pattern))
		if err != nil {
			d.logger.Warn("bad artifact pattern %q: %v", pattern, err)
			continue
		}
		for _, match := range matches {
			if d.isExcluded(filepath.Base(match)) {
				continue
			}
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				continue
			}
			candidates = append(candidates, candidate{path: match, modTime: info.ModTime()})
		}
	}

	if len(candidates) == 0 {
		d.setState(StateTimedOut)
		d.logger.Info("no fresh artifact found in %s", d.workDir)
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	artifact := candidates[0].path
	d.setState(StateFileFound)
	d.logger.Info("discovered artifact %s", artifact)
	d.logEvent(eventlog.EventArtifactFound, artifact)
	return artifact, true
}

func (d *Driver) isExcluded(name string) bool {
	for _, pattern := range d.profile.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Cleanup tears the session down unconditionally: stops the reader,
// attempts a graceful exit command, then escalates to terminate and finally
// kill. Safe to call multiple times and from deferred paths.
func (d *Driver) Cleanup() {
	d.cleanupOnce.Do(func() {
		d.monitoring.Store(false)

		if d.cmd != nil && d.cmd.Process != nil {
			if d.stdin != nil {
				_, _ = io.WriteString(d.stdin, d.profile.ExitCommand+"\n")
				_ = d.stdin.Close()
			}

			if !d.waitExit(2 * time.Second) {
				d.logger.Info("graceful exit timed out, terminating pid %d", d.cmd.Process.Pid)
				_ = d.cmd.Process.Signal(syscall.SIGTERM)
				if !d.waitExit(2 * time.Second) {
					d.logger.Warn("terminate timed out, killing pid %d", d.cmd.Process.Pid)
					_ = d.cmd.Process.Kill()
					d.waitExit(time.Second)
				}
			}
		}

		if d.readerDone != nil {
			select {
			case <-d.readerDone:
			case <-time.After(time.Second):
			}
		}

		d.setState(StateCleanedUp)
		d.logEvent(eventlog.EventCleanup, "session torn down")
		d.logger.Info("session %s cleaned up", d.sessionID)
	})
}

// waitExit waits up to timeout for the process to exit.
func (d *Driver) waitExit(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		_, _ = d.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Lines returns the bounded output channel.
func (d *Driver) Lines() <-chan string {
	return d.lines
}

// OutputTail returns a copy of the buffered output lines.
func (d *Driver) OutputTail() []string {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	tail := make([]string, len(d.buffer))
	copy(tail, d.buffer)
	return tail
}

// ProcessAlive reports whether the underlying process is still running.
func (d *Driver) ProcessAlive() bool {
	if d.cmd == nil || d.cmd.Process == nil {
		return false
	}
	// Signal 0 probes without delivering.
	return d.cmd.Process.Signal(syscall.Signal(0)) == nil
}
