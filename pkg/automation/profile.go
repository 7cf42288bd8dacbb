// Package automation wraps one external interactive code-generation tool:
// it starts the process, scripts it over stdin, drains output on a
// background reader, discovers the produced artifact by filesystem
// heuristic, optionally executes it, and guarantees teardown on every exit
// path.
package automation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"metagent/pkg/config"
)

// ToolProfile describes how to drive one interactive tool: the binary, the
// empirically tuned delays, and the artifact patterns it tends to produce.
// Profiles load from YAML so new tools need no code change.
type ToolProfile struct {
	Name                   string   `yaml:"name"`
	Binary                 string   `yaml:"binary"`
	Args                   []string `yaml:"args,omitempty"`
	WarmupSeconds          int      `yaml:"warmup_seconds,omitempty"`
	SettleSeconds          int      `yaml:"settle_seconds,omitempty"`
	FreshnessWindowSeconds int      `yaml:"freshness_window_seconds,omitempty"`
	ExecTimeoutSeconds     int      `yaml:"exec_timeout_seconds,omitempty"`
	OutputBufferLines      int      `yaml:"output_buffer_lines,omitempty"`

	// ArtifactPatterns are the globs checked during discovery.
	ArtifactPatterns []string `yaml:"artifact_patterns,omitempty"`

	// ExcludePatterns name files the discovery step must skip, such as the
	// tool's own working files.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	// ExitCommand is sent on stdin before escalating to signals.
	ExitCommand string `yaml:"exit_command,omitempty"`
}

// LoadProfile reads a tool profile from a YAML file.
func LoadProfile(path string) (*ToolProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool profile %s: %w", path, err)
	}

	var profile ToolProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse tool profile %s: %w", path, err)
	}
	if profile.Binary == "" {
		return nil, fmt.Errorf("tool profile %s: binary is required", path)
	}

	profile.applyDefaults()
	return &profile, nil
}

// ProfileFromConfig builds a profile from the automation config, overlaid by
// the YAML profile file when one is configured.
func ProfileFromConfig(cfg *config.AutomationConfig) (*ToolProfile, error) {
	if cfg.ProfilePath != "" {
		profile, err := LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
		return profile, nil
	}

	profile := &ToolProfile{
		Name:                   cfg.Binary,
		Binary:                 cfg.Binary,
		Args:                   cfg.Args,
		WarmupSeconds:          cfg.WarmupSeconds,
		SettleSeconds:          cfg.SettleSeconds,
		FreshnessWindowSeconds: cfg.FreshnessWindowSeconds,
		ExecTimeoutSeconds:     cfg.ExecTimeoutSeconds,
		OutputBufferLines:      cfg.OutputBufferLines,
	}
	profile.applyDefaults()
	return profile, nil
}

func (p *ToolProfile) applyDefaults() {
	if p.Name == "" {
		p.Name = p.Binary
	}
	if p.WarmupSeconds == 0 {
		p.WarmupSeconds = config.DefaultWarmupSeconds
	}
	if p.SettleSeconds == 0 {
		p.SettleSeconds = config.DefaultSettleSeconds
	}
	if p.FreshnessWindowSeconds == 0 {
		p.FreshnessWindowSeconds = config.DefaultFreshnessWindowSeconds
	}
	if p.ExecTimeoutSeconds == 0 {
		p.ExecTimeoutSeconds = config.DefaultExecTimeoutSeconds
	}
	if p.OutputBufferLines == 0 {
		p.OutputBufferLines = config.DefaultOutputBufferLines
	}
	if len(p.ArtifactPatterns) == 0 {
		p.ArtifactPatterns = []string{"*.py", "*.js", "*.rb", "*.sh", "*.html"}
	}
	if p.ExitCommand == "" {
		p.ExitCommand = "exit"
	}
}

func (p *ToolProfile) warmup() time.Duration {
	return time.Duration(p.WarmupSeconds) * time.Second
}

func (p *ToolProfile) settle() time.Duration {
	return time.Duration(p.SettleSeconds) * time.Second
}

func (p *ToolProfile) freshnessWindow() time.Duration {
	return time.Duration(p.FreshnessWindowSeconds) * time.Second
}

func (p *ToolProfile) execTimeout() time.Duration {
	return time.Duration(p.ExecTimeoutSeconds) * time.Second
}
