// Package config loads AURA's configuration: a YAML file for defaults,
// overlaid with the environment-variable surface from spec §6. The shape
// follows the teacher's Config/DefaultConfig convention: one struct per
// concern, a DefaultConfig() constructor, then environment overrides
// applied last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the LLM Client Adapter (spec §6).
type LLMConfig struct {
	Provider           string        `yaml:"provider"` // "openai" | "anthropic" | "gemini"
	Model              string        `yaml:"model"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	RateLimitPerSecond float64       `yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	APIKey             string        `yaml:"-"` // never persisted; env-only
}

// SandboxConfig configures the Code Sandbox (spec §4.5).
type SandboxConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxMemoryMB   int           `yaml:"max_memory_mb"`
	AllowedImports []string     `yaml:"allowed_imports"`
}

// ExecutionConfig configures the Tool Executor (spec §4.4).
type ExecutionConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// SelfHealConfig configures the Self-Healing Loop (spec §4.8/§7).
type SelfHealConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffFactor   float64       `yaml:"backoff_factor"`
}

// Config holds all of AURA's configuration.
type Config struct {
	AssistantName string `yaml:"assistant_name"`
	UserName      string `yaml:"user_name"`
	WakeWord      string `yaml:"wake_word"`
	DataDir       string `yaml:"-"` // env-only, resolved at load time

	LLM       LLMConfig       `yaml:"llm"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Execution ExecutionConfig `yaml:"execution"`
	SelfHeal  SelfHealConfig  `yaml:"self_heal"`

	Debug bool `yaml:"debug"`
}

// DefaultConfig returns AURA's built-in defaults, matching spec §4 and §6.
func DefaultConfig() *Config {
	return &Config{
		AssistantName: "AURA",

		LLM: LLMConfig{
			Provider:           "openai",
			Model:              "gpt-4o-mini",
			Timeout:            120 * time.Second,
			RateLimitPerSecond: 2,
			RateLimitBurst:     4,
		},
		Sandbox: SandboxConfig{
			Timeout:     10 * time.Second,
			MaxMemoryMB: 256,
			AllowedImports: []string{
				"strings", "strconv", "fmt", "math", "regexp",
				"encoding/json", "encoding/base64", "time", "sort",
				"bytes", "path", "path/filepath", "errors", "unicode",
			},
		},
		Execution: ExecutionConfig{
			DefaultTimeout: 30 * time.Second,
		},
		SelfHeal: SelfHealConfig{
			MaxRetries:    2,
			BackoffBase:   200 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}
}

// Load reads a YAML config file (if present) over DefaultConfig(), then
// applies the environment-variable surface from spec §6. A missing path is
// not an error: AURA runs on defaults plus env vars alone.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ASSISTANT_NAME"); v != "" {
		cfg.AssistantName = v
	}
	if v := os.Getenv("WAKE_WORD"); v != "" {
		cfg.WakeWord = v
	}
	if v := os.Getenv("USER_NAME"); v != "" {
		cfg.UserName = v
	}

	cfg.DataDir = os.Getenv("AURA_DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aura")
	}
	switch {
	case os.Getenv("XDG_DATA_HOME") != "":
		return filepath.Join(os.Getenv("XDG_DATA_HOME"), "aura")
	default:
		return filepath.Join(home, ".local", "share", "aura")
	}
}

// HasCredentials reports whether Layers 1.5/2/conversation may call an LLM.
func (c *Config) HasCredentials() bool {
	return c.LLM.APIKey != ""
}
