package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// ConsoleTransport is a local development transport that prints messages to
// a writer. Edits re-print the message with an edit marker since a terminal
// cannot rewrite earlier output.
type ConsoleTransport struct {
	mu     sync.Mutex
	out    io.Writer
	nextID int64
	tty    bool
}

// NewConsoleTransport creates a console transport writing to stdout.
func NewConsoleTransport() *ConsoleTransport {
	return &ConsoleTransport{
		out: os.Stdout,
		tty: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// NewConsoleTransportWithWriter creates a console transport for tests.
func NewConsoleTransportWithWriter(w io.Writer) *ConsoleTransport {
	return &ConsoleTransport{out: w}
}

// SendText implements Transport.
func (c *ConsoleTransport) SendText(_ context.Context, chatID int64, text string) (MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	prefix := fmt.Sprintf("[chat %d]", chatID)
	if c.tty {
		prefix = "\033[1m" + prefix + "\033[0m"
	}
	if _, err := fmt.Fprintf(c.out, "%s %s\n", prefix, text); err != nil {
		return MessageRef{}, fmt.Errorf("console write failed: %w", err)
	}
	return MessageRef{ChatID: chatID, MessageID: c.nextID}, nil
}

// EditText implements Transport.
func (c *ConsoleTransport) EditText(_ context.Context, ref MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.out, "[chat %d] (edit #%d) %s\n", ref.ChatID, ref.MessageID, text); err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	return nil
}

// AnswerCallback implements Transport. Console callbacks need no ack.
func (c *ConsoleTransport) AnswerCallback(_ context.Context, _ string) error {
	return nil
}
