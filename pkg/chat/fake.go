package chat

import (
	"context"
	"sync"
)

// SentMessage records one SendText or EditText call on the fake.
type SentMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
	Edited    bool
}

// Fake is an in-memory Transport for tests.
type Fake struct {
	mu       sync.Mutex
	nextID   int64
	Messages []SentMessage
	Acked    []string

	// SendErr, when set, makes SendText fail.
	SendErr error
}

// NewFake creates an empty fake transport.
func NewFake() *Fake {
	return &Fake{}
}

// SendText implements Transport.
func (f *Fake) SendText(_ context.Context, chatID int64, text string) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return MessageRef{}, f.SendErr
	}
	f.nextID++
	f.Messages = append(f.Messages, SentMessage{ChatID: chatID, MessageID: f.nextID, Text: text})
	return MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

// EditText implements Transport.
func (f *Fake) EditText(_ context.Context, ref MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Messages = append(f.Messages, SentMessage{ChatID: ref.ChatID, MessageID: ref.MessageID, Text: text, Edited: true})
	return nil
}

// AnswerCallback implements Transport.
func (f *Fake) AnswerCallback(_ context.Context, queryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Acked = append(f.Acked, queryID)
	return nil
}

// LastText returns the text of the most recent message, or empty.
func (f *Fake) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Messages) == 0 {
		return ""
	}
	return f.Messages[len(f.Messages)-1].Text
}

// Texts returns all message texts in order.
func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		texts[i] = m.Text
	}
	return texts
}
