// Package config loads the service configuration from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cvforge configuration.
type Config struct {
	Listen      string        `yaml:"listen"`
	Debug       bool          `yaml:"debug"`
	DBPath      string        `yaml:"db_path"`
	CORSOrigins []string      `yaml:"cors_origins"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
	Tokens      TokensConfig  `yaml:"tokens"`
	RateLimit   RateConfig    `yaml:"rate_limit"`
	Cache       CacheConfig   `yaml:"cache"`
	Breaker     BreakerConfig `yaml:"breaker"`
	Retry       RetryConfig   `yaml:"retry"`
	Ingress     IngressConfig `yaml:"ingress"`
}

// OpenAIConfig identifies the generation service and models.
type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
}

// TokensConfig controls the per-caller ledger.
type TokensConfig struct {
	Initial int `yaml:"initial"`
}

// RateConfig controls the per-caller sliding window.
type RateConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

// BreakerConfig controls the generation circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// RetryConfig controls generation retries.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// IngressConfig controls the per-IP token bucket in front of the API.
type IngressConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns a Config with the service's standard limits.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Debug:  true,
		DBPath: "cvforge.db",
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		OpenAI: OpenAIConfig{
			APIKey:        "${OPENAI_API_KEY}",
			Model:         "gpt-4-turbo-preview",
			FallbackModel: "gpt-3.5-turbo",
		},
		Tokens:    TokensConfig{Initial: 5},
		RateLimit: RateConfig{Requests: 10, Window: 60 * time.Second},
		Cache:     CacheConfig{Expiry: 10 * time.Minute},
		Breaker:   BreakerConfig{FailureThreshold: 5, Cooldown: 60 * time.Second},
		Retry:     RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		Ingress:   IngressConfig{RPS: 50, Burst: 100},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// The default API key placeholder expands only when loaded from a file;
	// resolve it here for the defaults-only path too.
	cfg.OpenAI.APIKey = os.ExpandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}
