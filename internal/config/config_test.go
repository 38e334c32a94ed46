package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ServerAddr != "127.0.0.1:8420" {
		t.Errorf("expected default addr, got %q", cfg.ServerAddr)
	}
	if cfg.MaxFindingsPerReview != 20 {
		t.Errorf("expected default max findings 20, got %d", cfg.MaxFindingsPerReview)
	}
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
server_addr = "0.0.0.0:9000"
llm_provider = "groq"
rate_limit_per_minute = 5
max_findings_per_review = 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ServerAddr != "0.0.0.0:9000" {
		t.Errorf("server_addr not loaded, got %q", cfg.ServerAddr)
	}
	if cfg.LLMProvider != "groq" {
		t.Errorf("llm_provider not loaded, got %q", cfg.LLMProvider)
	}
	if cfg.RateLimitPerMinute != 5 || cfg.MaxFindingsPerReview != 7 {
		t.Errorf("limits not loaded: %+v", cfg)
	}
	// Unset fields keep defaults
	if cfg.RequestTimeoutSeconds != 120 {
		t.Errorf("expected default timeout, got %d", cfg.RequestTimeoutSeconds)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("REVIEWD_API_KEY", "secret-from-env")
	t.Setenv("REVIEWD_RATE_LIMIT_PER_MINUTE", "3")
	t.Setenv("REVIEWD_LLM_PROVIDER", "groq")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.ReviewAPIKey != "secret-from-env" {
		t.Errorf("env API key not applied, got %q", cfg.ReviewAPIKey)
	}
	if cfg.RateLimitPerMinute != 3 {
		t.Errorf("env rate limit not applied, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.LLMProvider != "groq" {
		t.Errorf("env provider not applied, got %q", cfg.LLMProvider)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.OpenAIAPIKey = "sk-x"
		cfg.ReviewAPIKey = "rk-x"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing provider key", func(c *Config) { c.OpenAIAPIKey = "" }},
		{"missing review key", func(c *Config) { c.ReviewAPIKey = "" }},
		{"unknown provider", func(c *Config) { c.LLMProvider = "parrot" }},
		{"zero rate limit", func(c *Config) { c.RateLimitPerMinute = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSeconds = 0 }},
		{"zero diff size", func(c *Config) { c.MaxDiffSizeBytes = 0 }},
		{"zero findings", func(c *Config) { c.MaxFindingsPerReview = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_GroqKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMProvider = "groq"
	cfg.GroqAPIKey = "gk-x"
	cfg.ReviewAPIKey = "rk-x"
	if err := cfg.Validate(); err != nil {
		t.Errorf("groq config rejected: %v", err)
	}
	if cfg.LLMAPIKey() != "gk-x" {
		t.Errorf("LLMAPIKey should return groq key, got %q", cfg.LLMAPIKey())
	}
	if cfg.LLMModel() != cfg.GroqModel {
		t.Errorf("LLMModel should return groq model, got %q", cfg.LLMModel())
	}
}

func TestDataDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REVIEWD_DATA_DIR", dir)
	if got := DataDir(); got != dir {
		t.Errorf("DataDir = %q, want %q", got, dir)
	}
}
