package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryableClientSucceedsFirstTry(t *testing.T) {
	mock := NewMockClient(`{"ok": true}`)
	client := NewRetryableClient(mock, fastRetryConfig(3))

	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp.Content)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetryableClientRetriesTransient(t *testing.T) {
	mock := NewMockClient()
	mock.Err = NewError(ErrorTypeTransient, "connection reset")
	client := NewRetryableClient(mock, fastRetryConfig(2))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, 3, mock.CallCount(), "initial attempt plus two retries")
}

func TestRetryableClientNoRetryOnAuth(t *testing.T) {
	mock := NewMockClient()
	mock.Err = NewError(ErrorTypeAuth, "bad key")
	client := NewRetryableClient(mock, fastRetryConfig(3))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount(), "auth errors must not be retried")
}

func TestRetryableClientContextCancellation(t *testing.T) {
	mock := NewMockClient()
	mock.Err = NewError(ErrorTypeTransient, "flaky")
	client := NewRetryableClient(mock, RetryConfig{
		MaxRetries:    5,
		InitialDelay:  time.Hour,
		MaxDelay:      time.Hour,
		BackoffFactor: 2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelayJitterBothDirections(t *testing.T) {
	client := NewRetryableClient(NewMockClient(), RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		Jitter:        true,
	})

	low := time.Duration(float64(time.Second) * 0.9)
	high := time.Duration(float64(time.Second) * 1.1)
	seen := make(map[time.Duration]bool)
	for i := 0; i < 1000; i++ {
		d := client.calculateDelay(1)
		require.True(t, d == low || d == high, "delay %v outside the 10%% jitter band", d)
		seen[d] = true
	}
	assert.Len(t, seen, 2, "jitter must swing both up and down")
}

func TestErrorClassificationRetryability(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeTransient, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeEmptyResponse, true},
		{ErrorTypeAuth, false},
		{ErrorTypeBadPrompt, false},
		{ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		err := NewError(tt.errType, "test")
		assert.Equal(t, tt.retryable, err.ShouldRetry(), "type %s", tt.errType)
	}
}
