package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PipelineMetrics represents aggregated pipeline metrics from Prometheus.
type PipelineMetrics struct {
	Turns             int64   `json:"turns"`
	FallbackTurns     int64   `json:"fallback_turns"`
	GeneratedScrapers int64   `json:"generated_scrapers"`
	FailedGenerations int64   `json:"failed_generations"`
	FallbackRate      float64 `json:"fallback_rate"`
}

// QueryService provides methods to query pipeline metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetPipelineMetrics retrieves aggregated turn and generation metrics across
// all users.
func (q *QueryService) GetPipelineMetrics(ctx context.Context) (*PipelineMetrics, error) {
	metrics := &PipelineMetrics{}

	turns, err := q.scalar(ctx, `sum(metagent_turns_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	metrics.Turns = int64(turns)

	fallbacks, err := q.scalar(ctx, `sum(metagent_turns_total{fallback="true"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback turns: %w", err)
	}
	metrics.FallbackTurns = int64(fallbacks)

	generated, err := q.scalar(ctx, `sum(metagent_generation_sessions_total{outcome="generated"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query generated sessions: %w", err)
	}
	metrics.GeneratedScrapers = int64(generated)

	failed, err := q.scalar(ctx, `sum(metagent_generation_sessions_total{outcome!="generated"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed sessions: %w", err)
	}
	metrics.FailedGenerations = int64(failed)

	if metrics.Turns > 0 {
		metrics.FallbackRate = float64(metrics.FallbackTurns) / float64(metrics.Turns)
	}

	return metrics, nil
}

// GetGenerationOutcomes retrieves session counts broken down by outcome label.
func (q *QueryService) GetGenerationOutcomes(ctx context.Context) (map[string]int64, error) {
	result, _, err := q.queryAPI.Query(ctx,
		`sum by (outcome) (metagent_generation_sessions_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query generation outcomes: %w", err)
	}

	outcomes := make(map[string]int64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if outcome, ok := sample.Metric["outcome"]; ok {
				outcomes[string(outcome)] = int64(sample.Value)
			}
		}
	}
	return outcomes, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}
