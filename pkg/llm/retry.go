package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryConfig defines configuration for retry behavior.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // Shared default configuration
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// RetryableClient wraps an LLMClient with exponential-backoff retry logic.
type RetryableClient struct {
	client LLMClient
	config RetryConfig
}

// NewRetryableClient creates a new retryable LLM client.
func NewRetryableClient(client LLMClient, config RetryConfig) *RetryableClient {
	return &RetryableClient{
		client: client,
		config: config,
	}
}

// Complete implements LLMClient with retry logic.
func (r *RetryableClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return CompletionResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !shouldRetry(err) {
			break
		}
		if attempt == r.config.MaxRetries {
			break
		}
	}

	return CompletionResponse{}, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// GetModelName returns the wrapped client's model name.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

func (r *RetryableClient) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter {
		jitterFactor := time.Now().UnixNano()%2*2 - 1 // -1 or 1
		jitter := time.Duration(float64(delay) * 0.1 * float64(jitterFactor))
		delay += jitter
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

func shouldRetry(err error) bool {
	if classified, ok := AsError(err); ok {
		return classified.ShouldRetry()
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary") {
		return true
	}
	if strings.Contains(errStr, "rate") || strings.Contains(errStr, "429") {
		return true
	}
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return true
	}
	if strings.Contains(errStr, "empty response") {
		return true
	}
	return false
}
