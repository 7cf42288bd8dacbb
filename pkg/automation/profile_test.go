package automation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metagent/pkg/config"
)

func TestLoadProfileFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goose.yaml")
	content := `
name: goose
binary: goose
args: ["session", "start"]
warmup_seconds: 7
artifact_patterns:
  - "*.py"
exclude_patterns:
  - "goose_*"
exit_command: "/exit"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "goose", profile.Binary)
	assert.Equal(t, []string{"session", "start"}, profile.Args)
	assert.Equal(t, 7, profile.WarmupSeconds)
	assert.Equal(t, "/exit", profile.ExitCommand)
	// Unset fields picked up defaults.
	assert.Equal(t, config.DefaultSettleSeconds, profile.SettleSeconds)
	assert.Equal(t, config.DefaultFreshnessWindowSeconds, profile.FreshnessWindowSeconds)
}

func TestLoadProfileRequiresBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: incomplete\n"), 0644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestProfileFromConfigDefaults(t *testing.T) {
	cfg := &config.AutomationConfig{Binary: "goose", WarmupSeconds: 2}

	profile, err := ProfileFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "goose", profile.Binary)
	assert.Equal(t, 2, profile.WarmupSeconds)
	assert.Equal(t, config.DefaultSettleSeconds, profile.SettleSeconds)
	assert.NotEmpty(t, profile.ArtifactPatterns)
	assert.Equal(t, "exit", profile.ExitCommand)
}
