// Package config provides configuration for the llmclient tools.
//
// Configuration is loaded in layers:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LLMCLIENT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration.
type Config struct {
	Client        ClientConfig        `yaml:"client"`
	Bench         BenchConfig         `yaml:"bench"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ClientConfig describes how to reach the completion server.
type ClientConfig struct {
	BaseURL             string        `yaml:"base_url"`                // required
	APIKey              string        `yaml:"api_key"`                 // default: "dummy"
	APIKeyFile          string        `yaml:"api_key_file"`            // _file variant for api_key
	Timeout             time.Duration `yaml:"timeout"`                 // default: 60s
	StreamTimeout       time.Duration `yaml:"stream_timeout"`          // default: 0 (unbounded)
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"` // default: 16
}

// BenchConfig holds benchmark run settings.
type BenchConfig struct {
	Model        string  `yaml:"model"`         // default: "dummy"
	Query        string  `yaml:"query"`         // question sent to the model
	PassagesFile string  `yaml:"passages_file"` // JSON array of passages or chunks
	Retriever    string  `yaml:"retriever"`     // "passages" (file order) or "lexical", default: "passages"
	TopK         int     `yaml:"top_k"`         // default: 3
	PromptFormat string  `yaml:"prompt_format"` // "none", "default" or "lfm2-rag"
	Runs         int     `yaml:"runs"`          // default: 5
	Warmup       bool    `yaml:"warmup"`        // default: true
	Stream       bool    `yaml:"stream"`        // default: false
	Concurrency  int     `yaml:"concurrency"`   // default: 1
	Temperature  float64 `yaml:"temperature"`   // default: 0.0
	MaxTokens    int     `yaml:"max_tokens"`    // default: 200
	DebugPrompt  bool    `yaml:"debug_prompt"`  // print the assembled prompt

	// Extra holds additional request body keys such as top_p or seed.
	Extra map[string]any `yaml:"extra"`
}

// StorageConfig selects where benchmark runs are recorded.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", "postgres" or "redis", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL       string `yaml:"url"`        // e.g. redis://localhost:6379/0
	URLFile   string `yaml:"url_file"`   // _file variant for url
	KeyPrefix string `yaml:"key_prefix"` // default: "llmclient:"
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9464"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig controls slog output and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Client: ClientConfig{
			APIKey:              "dummy",
			Timeout:             60 * time.Second,
			MaxIdleConnsPerHost: 16,
		},
		Bench: BenchConfig{
			Model:        "dummy",
			Retriever:    "passages",
			TopK:         3,
			PromptFormat: "lfm2-rag",
			Runs:         5,
			Warmup:       true,
			Concurrency:  1,
			MaxTokens:    200,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
			Redis: RedisConfig{
				KeyPrefix: "llmclient:",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: ":9464",
				Path: "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
