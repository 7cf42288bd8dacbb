package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	pageAnalysesTotal  *prometheus.CounterVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
}

// promauto registers on the default registry, so construction must happen
// at most once per process.
//
//nolint:gochecknoglobals
var (
	promInstance *PrometheusRecorder
	promOnce     sync.Once
)

// NewPrometheusRecorder returns the singleton Prometheus-based recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	promOnce.Do(func() {
		promInstance = &PrometheusRecorder{
			turnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "metagent_turns_total",
					Help: "Total number of conversation turns by resulting stage and fallback use",
				},
				[]string{"stage", "fallback"},
			),
			turnDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "metagent_turn_duration_seconds",
					Help:    "Duration of conversation turns in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"stage"},
			),
			pageAnalysesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "metagent_page_analyses_total",
					Help: "Total number of page analysis attempts by status",
				},
				[]string{"status"},
			),
			generationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "metagent_generation_sessions_total",
					Help: "Total number of generation sessions by outcome",
				},
				[]string{"outcome"},
			),
			generationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "metagent_generation_duration_seconds",
					Help:    "Duration of generation sessions in seconds",
					Buckets: []float64{5, 15, 30, 60, 90, 120, 180},
				},
				[]string{"outcome"},
			),
		}
	})
	return promInstance
}

// ObserveTurn records one completed conversation turn.
func (p *PrometheusRecorder) ObserveTurn(stage string, fallbackUsed bool, duration time.Duration) {
	p.turnsTotal.WithLabelValues(stage, strconv.FormatBool(fallbackUsed)).Inc()
	p.turnDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObservePageAnalysis records one page analysis attempt.
func (p *PrometheusRecorder) ObservePageAnalysis(status string) {
	p.pageAnalysesTotal.WithLabelValues(status).Inc()
}

// ObserveGeneration records one completed generation session.
func (p *PrometheusRecorder) ObserveGeneration(outcome string, duration time.Duration) {
	p.generationsTotal.WithLabelValues(outcome).Inc()
	p.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
