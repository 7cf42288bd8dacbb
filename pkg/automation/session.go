package automation

import (
	"context"

	"metagent/pkg/eventlog"
)

// FailureReason distinguishes the non-fatal ways a session can fail.
type FailureReason string

const (
	FailureNone             FailureReason = ""
	FailureStart            FailureReason = "start_failed"
	FailureSend             FailureReason = "send_failed"
	FailureArtifactNotFound FailureReason = "artifact_not_found"
)

// Result summarizes one full automation session.
type Result struct {
	OK       bool
	Artifact string
	Reason   FailureReason
	Exec     ExecResult
}

// RunSession drives the whole session: start, send, discover, execute.
// Cleanup is guaranteed on every exit path. All failures are reported in the
// Result rather than raised, so the orchestrator can relay a clean failure
// to the user instead of crashing the conversation loop.
func (d *Driver) RunSession(ctx context.Context, prompt string) Result {
	defer d.Cleanup()

	if !d.Start(ctx) {
		d.logEvent(eventlog.EventOutcome, string(FailureStart))
		return Result{Reason: FailureStart}
	}

	if !d.Send(ctx, prompt) {
		d.logEvent(eventlog.EventOutcome, string(FailureSend))
		return Result{Reason: FailureSend}
	}

	artifact, found := d.DiscoverArtifact()
	if !found {
		d.logEvent(eventlog.EventOutcome, string(FailureArtifactNotFound))
		return Result{Reason: FailureArtifactNotFound}
	}

	execResult := d.Execute(ctx, artifact)
	d.logEvent(eventlog.EventOutcome, "generated: "+artifact)
	return Result{
		OK:       true,
		Artifact: artifact,
		Exec:     execResult,
	}
}
