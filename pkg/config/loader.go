package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/llmclient/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LLMCLIENT_CONFIG env, ./config.yaml, /etc/llmclient/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Overrides, typically from command-line flags
//  6. Validation
func Load(configPath string, overrides ...func(*Config)) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LLMCLIENT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/llmclient/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("LLMCLIENT_CONFIG"); envPath != "" {
		return envPath
	}

	for _, path := range []string{"config.yaml", "/etc/llmclient/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LLMCLIENT_* environment variables onto config
// fields. Unlike YAML values, a malformed number or duration in the
// environment is reported instead of ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LLMCLIENT_BASE_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := os.Getenv("LLMCLIENT_API_KEY"); v != "" {
		cfg.Client.APIKey = v
	}
	if v := os.Getenv("LLMCLIENT_MODEL"); v != "" {
		cfg.Bench.Model = v
	}
	if v := os.Getenv("LLMCLIENT_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("LLMCLIENT_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("LLMCLIENT_REDIS_URL"); v != "" {
		cfg.Storage.Redis.URL = v
	}
	if v := os.Getenv("LLMCLIENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LLMCLIENT_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}

	var err error
	if cfg.Client.Timeout, err = envDuration("LLMCLIENT_TIMEOUT", cfg.Client.Timeout); err != nil {
		return err
	}
	if cfg.Client.StreamTimeout, err = envDuration("LLMCLIENT_STREAM_TIMEOUT", cfg.Client.StreamTimeout); err != nil {
		return err
	}
	if cfg.Bench.Runs, err = envInt("LLMCLIENT_RUNS", cfg.Bench.Runs); err != nil {
		return err
	}
	return nil
}

func envDuration(name string, current time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return current, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return current, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func envInt(name string, current int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return current, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return current, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// A file is only read when the value field is still empty or, for the API key,
// still holds the placeholder default.
func resolveFileReferences(cfg *Config) error {
	// client.api_key_file -> client.api_key
	if cfg.Client.APIKeyFile != "" && (cfg.Client.APIKey == "" || cfg.Client.APIKey == Defaults().Client.APIKey) {
		val, err := readSecretFile(cfg.Client.APIKeyFile)
		if err != nil {
			return fmt.Errorf("client.api_key_file: %w", err)
		}
		cfg.Client.APIKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// storage.redis.url_file -> storage.redis.url
	if cfg.Storage.Redis.URLFile != "" && cfg.Storage.Redis.URL == "" {
		val, err := readSecretFile(cfg.Storage.Redis.URLFile)
		if err != nil {
			return fmt.Errorf("storage.redis.url_file: %w", err)
		}
		cfg.Storage.Redis.URL = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
