package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Provider    string            `mapstructure:"provider"` // sse or ollama
	Backend     BackendConfig     `mapstructure:"backend"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Session     SessionConfig     `mapstructure:"session"`
	Render      RenderConfig      `mapstructure:"render"`
	Blocks      BlocksConfig      `mapstructure:"blocks"`
	Tags        TagsConfig        `mapstructure:"tags"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
}

// BackendConfig points at the RAG backend that serves /chat/stream.
type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"` // For parsing string duration
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	URL          string        `mapstructure:"url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"-"`
	TimeoutStr   string        `mapstructure:"timeout"` // For parsing string duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// SessionConfig selects where conversations are persisted.
type SessionConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, file or none
	Path    string `mapstructure:"path"`
	UserID  string `mapstructure:"user_id"`
}

// RenderConfig controls terminal output.
type RenderConfig struct {
	Width     int    `mapstructure:"width"`
	Style     string `mapstructure:"style"` // glamour style name, or "auto"
	Highlight bool   `mapstructure:"highlight"`
	Live      bool   `mapstructure:"live"`
}

// BlocksConfig controls payload decoding.
type BlocksConfig struct {
	RepairJSON bool `mapstructure:"repair_json"`
}

// TagsConfig registers block kinds beyond the built-in ones.
type TagsConfig struct {
	Extra []TagConfig `mapstructure:"extra"`
}

type TagConfig struct {
	Kind  string `mapstructure:"kind"`
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

// VectorStoreConfig holds vector store configuration
type VectorStoreConfig struct {
	Enabled        bool                      `mapstructure:"enabled"`
	PersistenceDir string                    `mapstructure:"persistence_dir"`
	Collection     string                    `mapstructure:"collection"`
	Embedder       VectorStoreEmbedderConfig `mapstructure:"embedder"`
}

// VectorStoreEmbedderConfig holds embedder configuration
type VectorStoreEmbedderConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

var cfg *Config

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Set replaces the global config instance. Intended for tests and embedding.
func Set(c *Config) {
	cfg = c
}

// Load loads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./" + DirName) // Check project directory first
		viper.AddConfigPath(filepath.Join(xdgConfigHome, DirName))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.AutomaticEnv()
	bindEnvironmentVariables()

	// A missing settings file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := processDurations(c); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	cfg = c
	return c, nil
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("provider", "sse")

	viper.SetDefault("backend.url", "http://localhost:8000")
	viper.SetDefault("backend.token", "")
	viper.SetDefault("backend.timeout", "120s")

	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "qwen3:latest")
	viper.SetDefault("ollama.system_prompt", DefaultSystemPrompt)
	viper.SetDefault("ollama.timeout", "90s")

	viper.SetDefault("logging.log_file", "./"+DirName+"/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("session.backend", "sqlite")
	viper.SetDefault("session.path", "./"+DirName+"/stackrag.db")
	viper.SetDefault("session.user_id", "local")

	viper.SetDefault("render.width", 80)
	viper.SetDefault("render.style", "auto")
	viper.SetDefault("render.highlight", true)
	viper.SetDefault("render.live", false)

	viper.SetDefault("blocks.repair_json", false)

	viper.SetDefault("vectorstore.enabled", false)
	viper.SetDefault("vectorstore.persistence_dir", "./"+DirName+"/vectorstore")
	viper.SetDefault("vectorstore.collection", "turns")
	viper.SetDefault("vectorstore.embedder.model", "nomic-embed-text")
	viper.SetDefault("vectorstore.embedder.base_url", "http://localhost:11434/api")
}

// bindEnvironmentVariables binds specific environment variables to Viper keys
func bindEnvironmentVariables() {
	viper.BindEnv("provider", "STACKRAG_PROVIDER")
	viper.BindEnv("backend.url", "STACKRAG_BACKEND_URL")
	viper.BindEnv("backend.token", "STACKRAG_TOKEN")
	viper.BindEnv("backend.timeout", "STACKRAG_BACKEND_TIMEOUT")
	viper.BindEnv("ollama.url", "STACKRAG_OLLAMA_URL")
	viper.BindEnv("ollama.model", "STACKRAG_OLLAMA_MODEL")
	viper.BindEnv("ollama.timeout", "STACKRAG_OLLAMA_TIMEOUT")
	viper.BindEnv("logging.log_file", "STACKRAG_LOG_FILE")
	viper.BindEnv("logging.level", "STACKRAG_LOG_LEVEL")
	viper.BindEnv("logging.preserve", "STACKRAG_LOG_PRESERVE")
	viper.BindEnv("session.backend", "STACKRAG_SESSION_BACKEND")
	viper.BindEnv("session.path", "STACKRAG_SESSION_PATH")
	viper.BindEnv("session.user_id", "STACKRAG_USER_ID")
	viper.BindEnv("render.width", "STACKRAG_RENDER_WIDTH")
	viper.BindEnv("render.style", "STACKRAG_RENDER_STYLE")
	viper.BindEnv("blocks.repair_json", "STACKRAG_REPAIR_JSON")
	viper.BindEnv("vectorstore.enabled", "STACKRAG_VECTORSTORE_ENABLED")
	viper.BindEnv("vectorstore.persistence_dir", "STACKRAG_VECTORSTORE_PERSISTENCE_DIR")
	viper.BindEnv("vectorstore.embedder.model", "STACKRAG_EMBEDDER_MODEL")
	viper.BindEnv("vectorstore.embedder.base_url", "STACKRAG_EMBEDDER_BASE_URL")
}

// processDurations converts string durations to time.Duration
func processDurations(c *Config) error {
	d, err := parseDuration(c.Backend.TimeoutStr, 120*time.Second)
	if err != nil {
		return fmt.Errorf("invalid backend.timeout: %w", err)
	}
	c.Backend.Timeout = d

	d, err = parseDuration(c.Ollama.TimeoutStr, 90*time.Second)
	if err != nil {
		return fmt.Errorf("invalid ollama.timeout: %w", err)
	}
	c.Ollama.Timeout = d

	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// ActiveModel returns the model name reported for the selected provider.
func (c *Config) ActiveModel() string {
	if c.Provider == "ollama" {
		return c.Ollama.Model
	}
	return "backend"
}
