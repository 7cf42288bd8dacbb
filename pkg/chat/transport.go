// Package chat defines the outbound messaging contract. The conversation
// controller and generation orchestrator only ever send text, edit a sent
// message, and acknowledge callbacks; any front end exposing those three
// operations can drive the pipeline.
package chat

import "context"

// MessageRef identifies a previously sent message for later editing.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Transport is the outbound messaging interface.
type Transport interface {
	// SendText delivers text to the chat and returns a reference usable
	// with EditText.
	SendText(ctx context.Context, chatID int64, text string) (MessageRef, error)

	// EditText replaces the content of a previously sent message. Used for
	// in-place progress updates.
	EditText(ctx context.Context, ref MessageRef, text string) error

	// AnswerCallback acknowledges an inline-button callback query.
	AnswerCallback(ctx context.Context, queryID string) error
}
