// Package config provides centralized configuration for scanforge.
// Values come from defaults, then an optional YAML file, then the environment;
// each layer overrides the one before it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yangwenmai/scanforge/internal/engine"
)

// DefaultFile is read when SCANFORGE_CONFIG is unset. It may be absent.
const DefaultFile = "scanforge.yaml"

// Config holds all configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `yaml:"port"`

	// DBDSN is a SQLite file path or a postgres:// URL.
	DBDSN string `yaml:"db_dsn"`

	// LLMProvider selects the model backend: "openai", "claude", "gemini", "ollama" or "stub".
	LLMProvider string `yaml:"llm_provider"`

	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`

	// GenerationTimeout bounds one model call.
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// GenerationAttempts is how often a retryable generation failure is tried.
	GenerationAttempts int `yaml:"generation_attempts"`

	// GenerationBackoff is the base of the linear backoff between attempts.
	GenerationBackoff time.Duration `yaml:"generation_backoff"`

	GenerationTemperature float64 `yaml:"generation_temperature"`
	GenerationMaxTokens   int     `yaml:"generation_max_tokens"`

	// CacheSize is the number of analysis results kept in memory. Zero disables the cache.
	CacheSize int `yaml:"cache_size"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `yaml:"cors_origin"`

	// MaxSourceBytes caps the size of a submitted scanner.
	MaxSourceBytes int64 `yaml:"max_source_bytes"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                  "8080",
		DBDSN:                 "scanforge.db",
		LLMProvider:           "openai",
		OpenAIBaseURL:         "https://api.openai.com/v1",
		OpenAIModel:           "gpt-4o-mini",
		AnthropicModel:        "claude-sonnet-4-20250514",
		GeminiModel:           "gemini-2.0-flash",
		OllamaURL:             "http://localhost:11434",
		OllamaModel:           "qwen2.5-coder",
		GenerationTimeout:     120 * time.Second,
		GenerationAttempts:    2,
		GenerationBackoff:     2 * time.Second,
		GenerationTemperature: 0.1,
		GenerationMaxTokens:   8000,
		CacheSize:             256,
		LogLevel:              "info",
		CORSOrigin:            "*",
		MaxSourceBytes:        1 << 20,
	}
}

// Load reads .env files, the YAML file and the environment.
func Load() (Config, error) {
	loadEnvFile(".env.local")
	loadEnvFile(".env")

	cfg := Defaults()
	path, explicit := os.LookupEnv("SCANFORGE_CONFIG")
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// loadEnvFile sets variables from a dotenv file without overriding the real
// environment. A missing file is ignored.
func loadEnvFile(path string) {
	_ = godotenv.Load(path)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.LLMProvider = envOr("LLM_PROVIDER", c.LLMProvider)
	c.OpenAIKey = envOr("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.AnthropicKey = envOr("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.GeminiKey = envOr("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envOr("OLLAMA_MODEL", c.OllamaModel)
	c.GenerationTimeout = envDuration("GENERATION_TIMEOUT", c.GenerationTimeout)
	c.GenerationAttempts = envInt("GENERATION_ATTEMPTS", c.GenerationAttempts)
	c.GenerationBackoff = envDuration("GENERATION_BACKOFF", c.GenerationBackoff)
	c.GenerationTemperature = envFloat("GENERATION_TEMPERATURE", c.GenerationTemperature)
	c.GenerationMaxTokens = envInt("GENERATION_MAX_TOKENS", c.GenerationMaxTokens)
	c.CacheSize = envInt("CACHE_SIZE", c.CacheSize)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.MaxSourceBytes = int64(envInt("MAX_SOURCE_BYTES", int(c.MaxSourceBytes)))
}

// Validate rejects values the binaries cannot start with.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "claude", "gemini", "ollama", "stub":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.GenerationAttempts < 1 {
		return fmt.Errorf("GENERATION_ATTEMPTS must be at least 1, got %d", c.GenerationAttempts)
	}
	if c.MaxSourceBytes < 1 {
		return fmt.Errorf("MAX_SOURCE_BYTES must be positive, got %d", c.MaxSourceBytes)
	}
	return nil
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "stub":
		return true
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

// ModelClient returns the engine settings for the configured provider,
// falling back to the stub when its key is missing.
func (c Config) ModelClient() engine.ClientConfig {
	provider := c.LLMProvider
	if c.UseStubs() {
		provider = "stub"
	}
	return engine.ClientConfig{
		Provider:      provider,
		OpenAIKey:     c.OpenAIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		OpenAIModel:   c.OpenAIModel,
		ClaudeKey:     c.AnthropicKey,
		ClaudeModel:   c.AnthropicModel,
		GeminiKey:     c.GeminiKey,
		GeminiModel:   c.GeminiModel,
		OllamaURL:     c.OllamaURL,
		OllamaModel:   c.OllamaModel,
	}
}

// SlogLevel maps LogLevel onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
