// Package utils provides tiktoken-based token counting and identifier helpers.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"metagent/pkg/proto"
)

// TokenCounter provides accurate token counting for trimming LLM context.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter for the specified model. All
// supported providers are approximated with the GPT-4 encoding, which is
// close enough for budget enforcement.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// ValidateTokenLimit reports whether text fits within the token limit.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}

// TrimHistory returns the longest suffix of history whose combined token
// count fits within limit. The newest entries are always preferred; a single
// oversized entry is still returned alone so the caller never loses the
// current message.
func (tc *TokenCounter) TrimHistory(history []proto.HistoryEntry, limit int) []proto.HistoryEntry {
	if len(history) == 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		tokens := tc.CountTokens(history[i].Content)
		if total+tokens > limit && start < len(history) {
			break
		}
		total += tokens
		start = i
		if total > limit {
			break
		}
	}
	return history[start:]
}
