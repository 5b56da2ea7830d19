// Package config loads Third Eye configuration from YAML and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/logging"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/reasoning"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/telemetry"
)

var (
	ErrInvalidPort       = errors.New("server.port must be between 1 and 65535")
	ErrNoProviders       = errors.New("reasoning.providers is empty and reasoning.offline is false")
	ErrDuplicateProvider = errors.New("duplicate reasoning provider")
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig             `koanf:"server"`
	Logging   logging.Config           `koanf:"logging"`
	Telemetry telemetry.Config         `koanf:"telemetry"`
	Breaker   BreakerConfig            `koanf:"breaker"`
	Backends  map[string]BreakerConfig `koanf:"backends"`
	Reasoning ReasoningConfig          `koanf:"reasoning"`
	Redaction RedactionConfig          `koanf:"redaction"`
	NATS      NATSConfig               `koanf:"nats"`
	Events    EventsConfig             `koanf:"events"`
	MCP       MCPConfig                `koanf:"mcp"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BreakerConfig mirrors breaker.Config. Zero fields fall back to the breaker
// defaults.
type BreakerConfig struct {
	FailureThreshold    int      `koanf:"failure_threshold"`
	SuccessThreshold    int      `koanf:"success_threshold"`
	Timeout             Duration `koanf:"timeout"`
	ResetTimeout        Duration `koanf:"reset_timeout"`
	HalfOpenMaxRequests int      `koanf:"half_open_max_requests"`
}

// Breaker converts to a breaker.Config.
func (b BreakerConfig) Breaker() breaker.Config {
	return breaker.Config{
		FailureThreshold:    b.FailureThreshold,
		SuccessThreshold:    b.SuccessThreshold,
		Timeout:             b.Timeout.Duration(),
		ResetTimeout:        b.ResetTimeout.Duration(),
		HalfOpenMaxRequests: b.HalfOpenMaxRequests,
	}
}

// ReasoningConfig lists reasoning providers in fallback order.
type ReasoningConfig struct {
	Offline   bool             `koanf:"offline"`
	Providers []ProviderConfig `koanf:"providers"`
}

// ProviderConfig configures one OpenAI-compatible provider.
type ProviderConfig struct {
	Name        string  `koanf:"name"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      Secret  `koanf:"api_key"`
	APIKeyEnv   string  `koanf:"api_key_env"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`

	RatePerSecond float64  `koanf:"rate_per_second"`
	Burst         int      `koanf:"burst"`
	MaxWait       Duration `koanf:"max_wait"`
}

// Key returns the API key, reading APIKeyEnv when api_key is unset.
func (p ProviderConfig) Key() Secret {
	if p.APIKey.IsSet() || p.APIKeyEnv == "" {
		return p.APIKey
	}
	return Secret(os.Getenv(p.APIKeyEnv))
}

// Provider converts to a reasoning.ProviderConfig.
func (p ProviderConfig) Provider() reasoning.ProviderConfig {
	return reasoning.ProviderConfig{
		Name:        p.Name,
		BaseURL:     p.BaseURL,
		APIKey:      p.Key().Value(),
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// Guard converts the rate limit settings to reasoning.GuardOptions.
func (p ProviderConfig) Guard() reasoning.GuardOptions {
	return reasoning.GuardOptions{
		RatePerSecond: p.RatePerSecond,
		Burst:         p.Burst,
		MaxWait:       p.MaxWait.Duration(),
	}
}

// RedactionConfig configures secret scrubbing of eye payloads.
type RedactionConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// NATSConfig configures event publishing to NATS.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// EventsConfig configures the in-process event history.
type EventsConfig struct {
	History int `koanf:"history"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            7070,
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging:   logging.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Breaker: BreakerConfig{
			FailureThreshold:    breaker.DefaultFailureThreshold,
			SuccessThreshold:    breaker.DefaultSuccessThreshold,
			Timeout:             Duration(breaker.DefaultTimeout),
			ResetTimeout:        Duration(breaker.DefaultResetTimeout),
			HalfOpenMaxRequests: breaker.DefaultHalfOpenMaxRequests,
		},
		Backends: map[string]BreakerConfig{},
		Reasoning: ReasoningConfig{
			Offline: true,
		},
		Redaction: RedactionConfig{Enabled: true},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "thirdeye.events",
		},
		Events: EventsConfig{History: 256},
		MCP: MCPConfig{
			Name:    "third-eye",
			Version: "0.1.0",
		},
	}
}

// Validate checks the whole tree.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Breaker.Breaker().Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	for name, b := range c.Backends {
		if b.FailureThreshold < 0 || b.SuccessThreshold < 0 || b.HalfOpenMaxRequests < 0 {
			return fmt.Errorf("backends.%s: thresholds must not be negative", name)
		}
	}
	if !c.Reasoning.Offline && len(c.Reasoning.Providers) == 0 {
		return ErrNoProviders
	}
	seen := make(map[string]bool, len(c.Reasoning.Providers))
	for i, p := range c.Reasoning.Providers {
		if p.Name == "" {
			return fmt.Errorf("reasoning.providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Name)
		}
		seen[p.Name] = true
		if p.Model == "" {
			return fmt.Errorf("reasoning.providers[%d] %s: model is required", i, p.Name)
		}
		if p.RatePerSecond < 0 {
			return fmt.Errorf("reasoning.providers[%d] %s: rate_per_second must not be negative", i, p.Name)
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if c.Events.History < 0 {
		return fmt.Errorf("events.history must not be negative")
	}
	return nil
}

// BreakerOverrides returns per-backend breaker configs.
func (c Config) BreakerOverrides() map[string]breaker.Config {
	out := make(map[string]breaker.Config, len(c.Backends))
	for name, b := range c.Backends {
		out[name] = b.Breaker()
	}
	return out
}
