package logx

import (
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("conversation")
	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}
	if logger.GetComponent() != "conversation" {
		t.Errorf("Expected component 'conversation', got %s", logger.GetComponent())
	}
}

func TestWithComponent(t *testing.T) {
	logger := NewLogger("conversation")
	derived := logger.WithComponent("automation")

	if derived.GetComponent() != "automation" {
		t.Errorf("Expected component 'automation', got %s", derived.GetComponent())
	}
	if logger.GetComponent() != "conversation" {
		t.Error("Original logger component should be unchanged")
	}
}

func TestDomainFiltering(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, nil)
	if !IsDebugEnabledForDomain("conversation") {
		t.Error("Expected all domains enabled with nil domain list")
	}

	SetDebug(true, []string{"automation"})
	if IsDebugEnabledForDomain("conversation") {
		t.Error("Expected conversation domain disabled")
	}
	if !IsDebugEnabledForDomain("automation") {
		t.Error("Expected automation domain enabled")
	}

	SetDebug(false, nil)
	if IsDebugEnabledForDomain("automation") {
		t.Error("Expected no domains enabled when debug is off")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf("operation failed: %s", "reason")
	if err == nil {
		t.Fatal("Expected error from Errorf")
	}
	if err.Error() != "operation failed: reason" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := Errorf("base failure")
	wrapped := Wrap(base, "outer context")
	if wrapped.Error() != "outer context: base failure" {
		t.Errorf("Unexpected wrapped message: %s", wrapped.Error())
	}
}
