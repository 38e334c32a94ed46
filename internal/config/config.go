// Package config loads the daemon configuration from a TOML file
// with environment overrides. Configuration is validated once at
// startup and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration.
type Config struct {
	ServerAddr string `toml:"server_addr"`

	// LLM provider selection
	LLMProvider string `toml:"llm_provider"` // "openai" or "groq"
	OpenAIModel string `toml:"openai_model"`
	GroqModel   string `toml:"groq_model"`
	LLMBaseURL  string `toml:"llm_base_url"` // override for proxies/test servers

	// Secrets, normally supplied via environment
	OpenAIAPIKey string `toml:"openai_api_key"`
	GroqAPIKey   string `toml:"groq_api_key"`
	ReviewAPIKey string `toml:"review_api_key"`

	// Request policy
	RateLimitPerMinute    int `toml:"rate_limit_per_minute"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	MaxDiffSizeBytes      int `toml:"max_diff_size_bytes"`
	MaxFindingsPerReview  int `toml:"max_findings_per_review"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:            "127.0.0.1:8420",
		LLMProvider:           "openai",
		OpenAIModel:           "gpt-4o-mini",
		GroqModel:             "llama-3.3-70b-versatile",
		RateLimitPerMinute:    10,
		RequestTimeoutSeconds: 120,
		MaxDiffSizeBytes:      1 << 20, // 1MB
		MaxFindingsPerReview:  20,
	}
}

// DataDir returns the reviewd data directory. Uses REVIEWD_DATA_DIR
// if set, otherwise ~/.reviewd
func DataDir() string {
	if dir := os.Getenv("REVIEWD_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".reviewd")
}

// DefaultConfigPath returns the path to the config file.
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. A missing file
// is not an error; defaults plus environment overrides apply.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
// Secrets are expected to arrive this way rather than on disk.
func (c *Config) applyEnv() {
	setString(&c.ServerAddr, "REVIEWD_ADDR")
	setString(&c.LLMProvider, "REVIEWD_LLM_PROVIDER")
	setString(&c.OpenAIModel, "OPENAI_MODEL")
	setString(&c.GroqModel, "GROQ_MODEL")
	setString(&c.LLMBaseURL, "REVIEWD_LLM_BASE_URL")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.GroqAPIKey, "GROQ_API_KEY")
	setString(&c.ReviewAPIKey, "REVIEWD_API_KEY")
	setInt(&c.RateLimitPerMinute, "REVIEWD_RATE_LIMIT_PER_MINUTE")
	setInt(&c.RequestTimeoutSeconds, "REVIEWD_REQUEST_TIMEOUT_SECONDS")
	setInt(&c.MaxDiffSizeBytes, "REVIEWD_MAX_DIFF_SIZE_BYTES")
	setInt(&c.MaxFindingsPerReview, "REVIEWD_MAX_FINDINGS_PER_REVIEW")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("groq provider selected but GROQ_API_KEY not set")
		}
	default:
		return fmt.Errorf("unsupported llm_provider: %q (expected openai or groq)", c.LLMProvider)
	}

	if c.ReviewAPIKey == "" {
		return fmt.Errorf("review API key not set (REVIEWD_API_KEY)")
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("rate_limit_per_minute must be >= 1, got %d", c.RateLimitPerMinute)
	}
	if c.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("request_timeout_seconds must be >= 1, got %d", c.RequestTimeoutSeconds)
	}
	if c.MaxDiffSizeBytes < 1 {
		return fmt.Errorf("max_diff_size_bytes must be >= 1, got %d", c.MaxDiffSizeBytes)
	}
	if c.MaxFindingsPerReview < 1 {
		return fmt.Errorf("max_findings_per_review must be >= 1, got %d", c.MaxFindingsPerReview)
	}
	return nil
}

// LLMAPIKey returns the API key for the active provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "groq" {
		return c.GroqAPIKey
	}
	return c.OpenAIAPIKey
}

// LLMModel returns the model for the active provider.
func (c *Config) LLMModel() string {
	if c.LLMProvider == "groq" {
		return c.GroqModel
	}
	return c.OpenAIModel
}

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	path := DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
