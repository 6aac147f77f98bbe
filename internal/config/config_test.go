package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "taulechat.db"), cfg.DatabasePath)
	assert.False(t, cfg.Logging.Debug)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: ` + dir + `
logging:
  debug: true
  categories:
    provider: false
credentials:
  openrouter_api_key: file-key
models:
  - id: custom/model
    name: Custom
    provider: OpenRouter
    image_input: true
    context_tokens: 32000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "taulechat.db"), cfg.DatabasePath)
	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "file-key", cfg.Credentials.OpenRouterAPIKey)

	opts := cfg.LoggingOptions()
	assert.True(t, opts.DebugMode)
	assert.False(t, opts.Categories["provider"])

	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "custom/model", cfg.Models[0].ID)
	assert.True(t, cfg.Models[0].ImageInput)
	assert.Equal(t, 32000, cfg.Models[0].ContextTokens)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TAULECHAT_DATA_DIR", "/tmp/taulechat-test")
	t.Setenv("TAULECHAT_DEBUG", "1")
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/taulechat-test", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/taulechat-test", "taulechat.db"), cfg.DatabasePath)
	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "env-key", cfg.Credentials.OpenRouterAPIKey)
}
