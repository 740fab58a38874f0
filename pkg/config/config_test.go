package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sse", cfg.Provider)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, 120*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.URL)
	assert.Equal(t, 90*time.Second, cfg.Ollama.Timeout)
	assert.Contains(t, cfg.Ollama.SystemPrompt, "<ChartData>")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Preserve)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, "local", cfg.Session.UserID)
	assert.Equal(t, 80, cfg.Render.Width)
	assert.False(t, cfg.Blocks.RepairJSON)
	assert.False(t, cfg.VectorStore.Enabled)
	assert.Empty(t, cfg.Tags.Extra)

	assert.Same(t, cfg, Get())
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "settings.yaml")

	configContent := `
provider: ollama
backend:
  url: https://rag.example.com
  timeout: "30s"
ollama:
  model: llama3
  timeout: "2m"
logging:
  level: debug
  preserve: true
blocks:
  repair_json: true
tags:
  extra:
    - kind: table
      open: "<Table>"
      close: "</Table>"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "https://rag.example.com", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "llama3", cfg.Ollama.Model)
	assert.Equal(t, 2*time.Minute, cfg.Ollama.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Preserve)
	assert.True(t, cfg.Blocks.RepairJSON)
	require.Len(t, cfg.Tags.Extra, 1)
	assert.Equal(t, TagConfig{Kind: "table", Open: "<Table>", Close: "</Table>"}, cfg.Tags.Extra[0])
	assert.Equal(t, "llama3", cfg.ActiveModel())
	assert.Equal(t, configFile, GetConfigFileUsed())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("STACKRAG_BACKEND_URL", "http://env-backend:9000")
	t.Setenv("STACKRAG_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-backend:9000", cfg.Backend.URL)
	assert.Equal(t, "secret", cfg.Backend.Token)
}

func TestLoadInvalidDuration(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("backend:\n  timeout: soon\n"), 0644))

	_, err := Load(configFile)
	assert.ErrorContains(t, err, "backend.timeout")
}

func TestBuildSettingsPath(t *testing.T) {
	viper.Reset()
	viper.Set("config.path", "/tmp/stackrag-test")
	defer viper.Reset()

	assert.Equal(t, "/tmp/stackrag-test/system.log", BuildSettingsPath("system.log"))
}
