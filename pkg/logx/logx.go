// Package logx provides structured logging with env-controlled debug domains.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes timestamped, component-tagged log lines to stderr.
type Logger struct {
	component string
	logger    *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// debugConfig controls which domains emit debug output.
//
//nolint:gochecknoglobals // Intentional process-wide debug configuration
var (
	debugEnabled bool
	debugDomains map[string]bool // nil = all domains
	debugMutex   sync.RWMutex
)

//nolint:gochecknoinits // Required for env var initialization
func init() {
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugEnabled = true
	}

	// DEBUG_DOMAINS=conversation,automation limits debug to specific domains.
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugDomains[strings.TrimSpace(domain)] = true
		}
	}
}

// SetDebug configures debug logging programmatically, overriding env settings.
func SetDebug(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugEnabled = enabled
	if len(domains) == 0 {
		debugDomains = nil
	} else {
		debugDomains = make(map[string]bool)
		for _, domain := range domains {
			debugDomains[strings.TrimSpace(domain)] = true
		}
	}
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugEnabled {
		return false
	}
	if debugDomains == nil {
		return true
	}
	return debugDomains[domain]
}

func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0), // Log to stderr for CLI compatibility
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, message)
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// GetComponent returns the component tag this logger was created with.
func (l *Logger) GetComponent() string {
	return l.component
}

// WithComponent returns a logger sharing the same sink under a new tag.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		component: component,
		logger:    l.logger,
	}
}

// Global logging functions for convenience.
//
//nolint:gochecknoglobals // Package-level default logger mirrors stdlib log
var defaultLogger = NewLogger("system")

func Debugf(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
// Use this when you need both logging and error returning:
//
//	err := logx.Errorf("setup failed: %w", err).
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
