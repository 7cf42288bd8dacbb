// Package eventlog mirrors automation-session transcripts to daily rotated
// JSONL files. The log is an observability record only; nothing reads it
// back to rebuild state.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one transcript entry of an automation session.
type Event struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
}

// Event types written by the automation driver and orchestrator.
const (
	EventSessionStart  = "session_start"
	EventPromptSent    = "prompt_sent"
	EventToolOutput    = "tool_output"
	EventArtifactFound = "artifact_found"
	EventExecution     = "execution"
	EventCleanup       = "cleanup"
	EventOutcome       = "outcome"
)

// Writer appends events to daily rotated JSONL files.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates an event log writer with daily rotation in logDir.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &Writer{logDir: logDir}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return w, nil
}

// Append writes one event as a JSON line, rotating on date change.
func (w *Writer) Append(sessionID, eventType, detail string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	event := Event{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Type:      eventType,
		Detail:    detail,
	}
	jsonData, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := w.currentFile.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().UTC().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	filename := fmt.Sprintf("sessions-%s.jsonl", newDate)
	path := filepath.Join(w.logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
