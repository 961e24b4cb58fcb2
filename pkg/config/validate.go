package config

import (
	"errors"
	"fmt"
	"strings"
)

// PromptFormats lists the accepted bench.prompt_format values.
var PromptFormats = []string{"none", "default", "lfm2-rag"}

// reservedExtraKeys are request keys the benchmark always writes itself.
var reservedExtraKeys = []string{"model", "messages", "stream", "temperature", "max_tokens"}

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Client.BaseURL == "" {
		errs = append(errs, fmt.Errorf("client.base_url is required"))
	} else if !strings.HasPrefix(c.Client.BaseURL, "http://") && !strings.HasPrefix(c.Client.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("client.base_url must start with http:// or https://, got %q", c.Client.BaseURL))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("client.timeout must be > 0, got %v", c.Client.Timeout))
	}
	if c.Client.StreamTimeout < 0 {
		errs = append(errs, fmt.Errorf("client.stream_timeout must be >= 0, got %v", c.Client.StreamTimeout))
	}
	if c.Client.MaxIdleConnsPerHost < 0 {
		errs = append(errs, fmt.Errorf("client.max_idle_conns_per_host must be >= 0, got %d", c.Client.MaxIdleConnsPerHost))
	}

	if c.Bench.Model == "" {
		errs = append(errs, fmt.Errorf("bench.model is required"))
	}
	if c.Bench.Runs <= 0 {
		errs = append(errs, fmt.Errorf("bench.runs must be > 0, got %d", c.Bench.Runs))
	}
	if c.Bench.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("bench.concurrency must be > 0, got %d", c.Bench.Concurrency))
	}
	if c.Bench.TopK < 0 {
		errs = append(errs, fmt.Errorf("bench.top_k must be >= 0, got %d", c.Bench.TopK))
	}
	if c.Bench.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("bench.max_tokens must be >= 0, got %d", c.Bench.MaxTokens))
	}
	if c.Bench.Temperature < 0 || c.Bench.Temperature > 2 {
		errs = append(errs, fmt.Errorf("bench.temperature must be between 0 and 2, got %v", c.Bench.Temperature))
	}
	validFormat := false
	for _, f := range PromptFormats {
		if c.Bench.PromptFormat == f {
			validFormat = true
		}
	}
	if !validFormat {
		errs = append(errs, fmt.Errorf("bench.prompt_format must be one of %s, got %q", strings.Join(PromptFormats, ", "), c.Bench.PromptFormat))
	}

	for _, key := range reservedExtraKeys {
		if _, ok := c.Bench.Extra[key]; ok {
			errs = append(errs, fmt.Errorf("bench.extra must not set %q, it has a dedicated setting", key))
		}
	}

	switch c.Bench.Retriever {
	case "passages", "lexical":
		// valid
	default:
		errs = append(errs, fmt.Errorf("bench.retriever must be \"passages\" or \"lexical\", got %q", c.Bench.Retriever))
	}

	switch c.Storage.Type {
	case "none", "memory", "postgres", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"none\", \"memory\", \"postgres\" or \"redis\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
	}

	if c.Storage.Type == "redis" && c.Storage.Redis.URL == "" {
		errs = append(errs, fmt.Errorf("storage.redis.url or storage.redis.url_file is required when storage.type is \"redis\""))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
	}

	switch c.Logging.Format {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
