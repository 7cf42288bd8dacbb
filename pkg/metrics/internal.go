package metrics

import (
	"sync"
	"time"
)

// InternalRecorder implements the Recorder interface using in-memory
// aggregation. Simpler than Prometheus and useful when no scrape endpoint
// is running; also the recorder of choice in tests.
type InternalRecorder struct {
	mu    sync.RWMutex
	stats PipelineStats
}

// PipelineStats is the in-memory aggregate of everything recorded.
type PipelineStats struct {
	Turns             int64            `json:"turns"`
	FallbackTurns     int64            `json:"fallback_turns"`
	TurnsByStage      map[string]int64 `json:"turns_by_stage"`
	PageAnalyses      map[string]int64 `json:"page_analyses"`
	Generations       map[string]int64 `json:"generations"`
	GenerationSeconds float64          `json:"generation_seconds_total"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// NewInternalRecorder creates a fresh in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{
		stats: PipelineStats{
			TurnsByStage: make(map[string]int64),
			PageAnalyses: make(map[string]int64),
			Generations:  make(map[string]int64),
		},
	}
}

// ObserveTurn records one completed conversation turn.
func (r *InternalRecorder) ObserveTurn(stage string, fallbackUsed bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Turns++
	if fallbackUsed {
		r.stats.FallbackTurns++
	}
	r.stats.TurnsByStage[stage]++
	r.stats.LastUpdated = time.Now()
}

// ObservePageAnalysis records one page analysis attempt.
func (r *InternalRecorder) ObservePageAnalysis(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.PageAnalyses[status]++
	r.stats.LastUpdated = time.Now()
}

// ObserveGeneration records one completed generation session.
func (r *InternalRecorder) ObserveGeneration(outcome string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Generations[outcome]++
	r.stats.GenerationSeconds += duration.Seconds()
	r.stats.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current aggregates.
func (r *InternalRecorder) Snapshot() PipelineStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.stats
	out.TurnsByStage = copyCounts(r.stats.TurnsByStage)
	out.PageAnalyses = copyCounts(r.stats.PageAnalyses)
	out.Generations = copyCounts(r.stats.Generations)
	return out
}

// Reset clears all aggregates (useful for testing).
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = PipelineStats{
		TurnsByStage: make(map[string]int64),
		PageAnalyses: make(map[string]int64),
		Generations:  make(map[string]int64),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
