// Package metrics provides metrics recording for the requirements pipeline.
package metrics

import "time"

// Recorder defines the interface for recording pipeline metrics.
type Recorder interface {
	// ObserveTurn records one completed conversation turn.
	ObserveTurn(stage string, fallbackUsed bool, duration time.Duration)

	// ObservePageAnalysis records one page analysis attempt.
	ObservePageAnalysis(status string)

	// ObserveGeneration records one completed generation session.
	ObserveGeneration(outcome string, duration time.Duration)
}

// Page analysis status labels.
const (
	PageAnalysisOK     = "ok"
	PageAnalysisFailed = "failed"
	PageAnalysisCached = "cached"
)

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveTurn does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveTurn(_ string, _ bool, _ time.Duration) {}

// ObservePageAnalysis does nothing in the no-op recorder.
func (n *NoopRecorder) ObservePageAnalysis(_ string) {}

// ObserveGeneration does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveGeneration(_ string, _ time.Duration) {}
