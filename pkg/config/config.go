// Package config manages application configuration loaded from a JSON file
// with defaulting and environment fallbacks, plus the encrypted secrets store.
//
// Access is value-based: GetConfig returns a copy, so callers never hold a
// reference into the mutable singleton.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Default timing values. Warm-up and settle delays are empirically tuned to
// the external tool's behavior; every one of them can be overridden in the
// config file or a tool profile.
const (
	DefaultWarmupSeconds           = 5
	DefaultSettleSeconds           = 30
	DefaultFreshnessWindowSeconds  = 120
	DefaultExecTimeoutSeconds      = 5
	DefaultPollIntervalSeconds     = 5
	DefaultProgressIntervalSeconds = 15
	DefaultCeilingSeconds          = 120
	DefaultOutputBufferLines       = 1000
	DefaultExchangeBudget          = 3
	DefaultHistoryWindow           = 8
	DefaultHistoryTokenLimit       = 3000
	DefaultMaxURLAnalysesPerTurn   = 3
)

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
	ProviderMock      = "mock"
)

// Config is the root configuration structure.
type Config struct {
	LLM        *LLMConfig        `json:"llm,omitempty"`
	Automation *AutomationConfig `json:"automation,omitempty"`
	Generation *GenerationConfig `json:"generation,omitempty"`
	Analyzer   *AnalyzerConfig   `json:"analyzer,omitempty"`
	Metrics    *MetricsConfig    `json:"metrics,omitempty"`
	Records    *RecordsConfig    `json:"records,omitempty"`
	EventLog   *EventLogConfig   `json:"eventlog,omitempty"`
}

// LLMConfig selects the completion provider for requirement analysis.
type LLMConfig struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	MaxTokens  int    `json:"max_tokens,omitempty"`
	OllamaHost string `json:"ollama_host,omitempty"`
}

// AutomationConfig tunes the interactive tool driver.
type AutomationConfig struct {
	Binary                 string   `json:"binary"`
	Args                   []string `json:"args,omitempty"`
	WorkDir                string   `json:"work_dir,omitempty"`
	ProfilePath            string   `json:"profile_path,omitempty"`
	WarmupSeconds          int      `json:"warmup_seconds,omitempty"`
	SettleSeconds          int      `json:"settle_seconds,omitempty"`
	FreshnessWindowSeconds int      `json:"freshness_window_seconds,omitempty"`
	ExecTimeoutSeconds     int      `json:"exec_timeout_seconds,omitempty"`
	OutputBufferLines      int      `json:"output_buffer_lines,omitempty"`
}

// GenerationConfig tunes the orchestrator's polling loop.
type GenerationConfig struct {
	PollIntervalSeconds     int `json:"poll_interval_seconds,omitempty"`
	ProgressIntervalSeconds int `json:"progress_interval_seconds,omitempty"`
	CeilingSeconds          int `json:"ceiling_seconds,omitempty"`
}

// AnalyzerConfig tunes the requirement analyzer's context window.
type AnalyzerConfig struct {
	ExchangeBudget        int `json:"exchange_budget,omitempty"`
	HistoryWindow         int `json:"history_window,omitempty"`
	HistoryTokenLimit     int `json:"history_token_limit,omitempty"`
	MaxURLAnalysesPerTurn int `json:"max_url_analyses_per_turn,omitempty"`
}

// MetricsConfig controls the Prometheus recorder and query service.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	ListenAddr    string `json:"listen_addr,omitempty"`
	PrometheusURL string `json:"prometheus_url,omitempty"`
}

// RecordsConfig controls the append-only SQLite observability record.
type RecordsConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	DBPath  string `json:"db_path,omitempty"`
}

// EventLogConfig controls the JSONL session transcript writer.
type EventLogConfig struct {
	Dir string `json:"dir,omitempty"`
}

// Singleton state.
//
//nolint:gochecknoglobals // Intentional config singleton
var (
	globalConfig *Config
	configMutex  sync.RWMutex
)

// LoadConfig reads the JSON config file at path, applies defaults, and
// installs the result as the process-wide configuration. An empty path
// installs pure defaults.
func LoadConfig(path string) error {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM == nil {
		cfg.LLM = &LLMConfig{}
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAnthropic
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModelFor(cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}

	if cfg.Automation == nil {
		cfg.Automation = &AutomationConfig{}
	}
	auto := cfg.Automation
	if auto.Binary == "" {
		auto.Binary = "goose"
	}
	if auto.WorkDir == "" {
		auto.WorkDir = "."
	}
	if auto.WarmupSeconds == 0 {
		auto.WarmupSeconds = DefaultWarmupSeconds
	}
	if auto.SettleSeconds == 0 {
		auto.SettleSeconds = DefaultSettleSeconds
	}
	if auto.FreshnessWindowSeconds == 0 {
		auto.FreshnessWindowSeconds = DefaultFreshnessWindowSeconds
	}
	if auto.ExecTimeoutSeconds == 0 {
		auto.ExecTimeoutSeconds = DefaultExecTimeoutSeconds
	}
	if auto.OutputBufferLines == 0 {
		auto.OutputBufferLines = DefaultOutputBufferLines
	}

	if cfg.Generation == nil {
		cfg.Generation = &GenerationConfig{}
	}
	gen := cfg.Generation
	if gen.PollIntervalSeconds == 0 {
		gen.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if gen.ProgressIntervalSeconds == 0 {
		gen.ProgressIntervalSeconds = DefaultProgressIntervalSeconds
	}
	if gen.CeilingSeconds == 0 {
		gen.CeilingSeconds = DefaultCeilingSeconds
	}

	if cfg.Analyzer == nil {
		cfg.Analyzer = &AnalyzerConfig{}
	}
	an := cfg.Analyzer
	if an.ExchangeBudget == 0 {
		an.ExchangeBudget = DefaultExchangeBudget
	}
	if an.HistoryWindow == 0 {
		an.HistoryWindow = DefaultHistoryWindow
	}
	if an.HistoryTokenLimit == 0 {
		an.HistoryTokenLimit = DefaultHistoryTokenLimit
	}
	if an.MaxURLAnalysesPerTurn == 0 {
		an.MaxURLAnalysesPerTurn = DefaultMaxURLAnalysesPerTurn
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}

	if cfg.Records == nil {
		cfg.Records = &RecordsConfig{}
	}
	if cfg.Records.DBPath == "" {
		cfg.Records.DBPath = filepath.Join(".metagent", "records.db")
	}

	if cfg.EventLog == nil {
		cfg.EventLog = &EventLogConfig{}
	}
	if cfg.EventLog.Dir == "" {
		cfg.EventLog.Dir = filepath.Join(".metagent", "logs")
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderOllama:
		return "llama3.1"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	default:
		return "claude-sonnet-4-20250514"
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Generation.CeilingSeconds < cfg.Generation.PollIntervalSeconds {
		return fmt.Errorf("generation ceiling (%ds) must be at least one poll interval (%ds)",
			cfg.Generation.CeilingSeconds, cfg.Generation.PollIntervalSeconds)
	}
	return nil
}

// GetConfig returns a copy of the current configuration.
func GetConfig() (Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return Config{}, fmt.Errorf("configuration not loaded")
	}
	return *globalConfig, nil
}

// SetConfigForTests installs a config directly; test use only.
func SetConfigForTests(cfg *Config) {
	applyDefaults(cfg)
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// Duration helpers so callers never convert seconds themselves.

func (a *AutomationConfig) Warmup() time.Duration {
	return time.Duration(a.WarmupSeconds) * time.Second
}

func (a *AutomationConfig) Settle() time.Duration {
	return time.Duration(a.SettleSeconds) * time.Second
}

func (a *AutomationConfig) FreshnessWindow() time.Duration {
	return time.Duration(a.FreshnessWindowSeconds) * time.Second
}

func (a *AutomationConfig) ExecTimeout() time.Duration {
	return time.Duration(a.ExecTimeoutSeconds) * time.Second
}

func (g *GenerationConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

func (g *GenerationConfig) ProgressInterval() time.Duration {
	return time.Duration(g.ProgressIntervalSeconds) * time.Second
}

func (g *GenerationConfig) Ceiling() time.Duration {
	return time.Duration(g.CeilingSeconds) * time.Second
}
