package generation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"metagent/pkg/automation"
	"metagent/pkg/chat"
	"metagent/pkg/config"
	"metagent/pkg/logx"
)

// Outcome classifies how a generation attempt ended.
type Outcome string

const (
	OutcomeGenerated        Outcome = "generated"
	OutcomeStartFailed      Outcome = "start_failed"
	OutcomeSendFailed       Outcome = "send_failed"
	OutcomeArtifactNotFound Outcome = "artifact_not_found"
	OutcomeTimedOut         Outcome = "timed_out"
)

// Result is the orchestrator's verdict on one generation attempt.
type Result struct {
	Outcome  Outcome
	Artifact string
	Exec     automation.ExecResult
	Elapsed  time.Duration
}

// DriverFactory creates a fresh driver per attempt; drivers are single-use.
type DriverFactory func(sink automation.ProgressSink) *automation.Driver

// dirLocks serializes generation per working directory. Artifact discovery
// relies on filesystem mtimes, so two concurrent sessions in one directory
// would race on each other's output.
//
//nolint:gochecknoglobals // Process-wide named mutex registry
var dirLocks sync.Map

func lockDir(dir string) func() {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	mu, _ := dirLocks.LoadOrStore(abs, &sync.Mutex{})
	m := mu.(*sync.Mutex) //nolint:errcheck // Map only ever holds *sync.Mutex
	m.Lock()
	return m.Unlock
}

// Orchestrator runs automation sessions without blocking the caller's
// control loop beyond the configured ceiling.
type Orchestrator struct {
	newDriver DriverFactory
	workDir   string
	transport chat.Transport
	cfg       *config.GenerationConfig
	logger    *logx.Logger
}

// NewOrchestrator creates an orchestrator for one working directory.
func NewOrchestrator(factory DriverFactory, workDir string, transport chat.Transport, cfg *config.GenerationConfig) *Orchestrator {
	return &Orchestrator{
		newDriver: factory,
		workDir:   workDir,
		transport: transport,
		cfg:       cfg,
		logger:    logx.NewLogger("generation"),
	}
}

// Generate runs one automation session against the stored prompt. The
// blocking driver call executes on a worker goroutine; this method polls
// its completion at the poll interval and returns at the ceiling at the
// latest (plus at most one poll interval). On ceiling breach the worker is
// abandoned; the driver's own deferred cleanup still tears the process
// down. Progress edits go to the chat transport at the coarser progress
// interval.
func (o *Orchestrator) Generate(ctx context.Context, chatID int64, prompt string) Result {
	unlock := lockDir(o.workDir)
	defer unlock()

	start := time.Now()
	ceiling := o.cfg.Ceiling()

	ref, sendErr := o.transport.SendText(ctx, chatID,
		fmt.Sprintf("Generating your scraper... (budget %s)", ceiling))
	if sendErr != nil {
		o.logger.Warn("progress message send failed: %v", sendErr)
	}

	driver := o.newDriver(nil)
	o.logger.Info("starting generation session %s in %s", driver.SessionID(), o.workDir)

	resultCh := make(chan automation.Result, 1)
	go func() {
		resultCh <- driver.RunSession(ctx, prompt)
	}()

	ticker := time.NewTicker(o.cfg.PollInterval())
	defer ticker.Stop()
	lastProgress := start

	for {
		select {
		case res := <-resultCh:
			elapsed := time.Since(start)
			o.logger.Info("session %s finished in %s (ok=%v reason=%s)",
				driver.SessionID(), elapsed.Round(time.Second), res.OK, res.Reason)
			return Result{
				Outcome:  outcomeFor(res),
				Artifact: res.Artifact,
				Exec:     res.Exec,
				Elapsed:  elapsed,
			}

		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= ceiling {
				o.logger.Warn("session %s breached %s ceiling, abandoning worker", driver.SessionID(), ceiling)
				return Result{Outcome: OutcomeTimedOut, Elapsed: elapsed}
			}
			if sendErr == nil && time.Since(lastProgress) >= o.cfg.ProgressInterval() {
				lastProgress = time.Now()
				text := fmt.Sprintf("Still generating... %s elapsed of %s budget.",
					elapsed.Round(time.Second), ceiling)
				if err := o.transport.EditText(ctx, ref, text); err != nil {
					o.logger.Debug("progress edit failed: %v", err)
				}
			}

		case <-ctx.Done():
			return Result{Outcome: OutcomeTimedOut, Elapsed: time.Since(start)}
		}
	}
}

func outcomeFor(res automation.Result) Outcome {
	if res.OK {
		return OutcomeGenerated
	}
	switch res.Reason {
	case automation.FailureStart:
		return OutcomeStartFailed
	case automation.FailureSend:
		return OutcomeSendFailed
	default:
		return OutcomeArtifactNotFound
	}
}
