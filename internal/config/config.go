// Package config loads and persists slashsense configuration.
// The config file is YAML, written next to the workspace under
// .slashsense/config.yaml; environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"slashsense/internal/types"
)

// Config holds all slashsense configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Detection thresholds (policy + tier escalation).
	Thresholds types.ThresholdConfig `yaml:"thresholds"`

	// Per-tier enable flags. Tier 1 cannot be disabled; it is free.
	Tiers TiersConfig `yaml:"tiers"`

	// Embedding engine (tier 2) configuration.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Routed fallback (tier 3) configuration.
	Routed RoutedConfig `yaml:"routed"`

	// Registry sources.
	Registry RegistryConfig `yaml:"registry"`

	// Custom pattern overlay.
	Overlay OverlayConfig `yaml:"overlay"`

	// Telemetry sink.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// TiersConfig enables or disables the non-free tiers. Operators disable the
// routed tier for fully offline operation.
type TiersConfig struct {
	Embedding bool `yaml:"embedding"`
	Routed    bool `yaml:"routed"`
}

// EmbeddingConfig configures the tier-2 embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	WarmupTimeout  string `yaml:"warmup_timeout"` // bound on first-use prototype load
}

// RoutedConfig configures the tier-3 routed fallback.
type RoutedConfig struct {
	Provider string `yaml:"provider"` // "genai" or "http"
	Endpoint string `yaml:"endpoint"` // http provider only
	Model    string `yaml:"model"`    // genai provider only
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"` // hard bound per request
}

// RegistryConfig lists command declaration sources, applied in order
// (later sources overwrite earlier ones by command id).
type RegistryConfig struct {
	MarkdownDirs []string `yaml:"markdown_dirs"` // plugin command dirs with frontmatter
	MappingsPath string   `yaml:"mappings_path"` // intent_mappings.json, optional
}

// OverlayConfig configures the user pattern overlay.
type OverlayConfig struct {
	Path  string `yaml:"path"`  // YAML file of phrase -> command entries
	Watch bool   `yaml:"watch"` // reload on file change (explicit signal via watcher)
}

// TelemetryConfig configures detection event recording.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig mirrors internal/logging's settings.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:       "slashsense",
		Version:    "1.0.0",
		Thresholds: types.DefaultThresholds(),
		Tiers: TiersConfig{
			Embedding: true,
			Routed:    true,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			WarmupTimeout:  "5s",
		},
		Routed: RoutedConfig{
			Provider: "genai",
			Model:    "gemini-2.0-flash-lite",
			Timeout:  "150ms",
		},
		Overlay: OverlayConfig{
			Path: filepath.Join(".slashsense", "custom_patterns.yaml"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".slashsense", "detections.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads config from the given path, applies env overrides, and
// validates thresholds (invalid ordering is replaced with defaults).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	validated, verr := cfg.Thresholds.Validate()
	cfg.Thresholds = validated

	// verr is non-fatal: defaults were already substituted. The caller gets
	// a usable config either way and may log the reason.
	return cfg, verr
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SLASHSENSE_GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
		if c.Routed.APIKey == "" {
			c.Routed.APIKey = v
		}
	}
	// GEMINI_API_KEY is the conventional variable for Gemini-backed tools.
	if c.Embedding.GenAIAPIKey == "" {
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Embedding.GenAIAPIKey = v
			if c.Routed.APIKey == "" {
				c.Routed.APIKey = v
			}
		}
	}
	if v := os.Getenv("SLASHSENSE_OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("SLASHSENSE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("SLASHSENSE_ROUTED_ENDPOINT"); v != "" {
		c.Routed.Endpoint = v
		c.Routed.Provider = "http"
	}
	if os.Getenv("SLASHSENSE_DISABLE_EMBEDDING") == "1" {
		c.Tiers.Embedding = false
	}
	if os.Getenv("SLASHSENSE_DISABLE_ROUTED") == "1" {
		c.Tiers.Routed = false
	}
	if os.Getenv("SLASHSENSE_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// WarmupTimeout parses the embedding warmup bound, with a safe default.
func (c *Config) WarmupTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.WarmupTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// RoutedTimeout parses the tier-3 request bound, with a safe default.
func (c *Config) RoutedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Routed.Timeout)
	if err != nil || d <= 0 {
		return 150 * time.Millisecond
	}
	return d
}
