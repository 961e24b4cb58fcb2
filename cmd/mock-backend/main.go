// Command mock-backend runs a deterministic OpenAI-compatible chat
// completions server for exercising the client and the benchmark harness
// without a real model.
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_API_KEY     - Require this bearer token when set
//	MOCK_MODELS      - Comma-separated model IDs (default: "mock-model")
//	MOCK_MALFORMED   - "1" injects undecodable frames into every stream
//	MOCK_TOKEN_DELAY - Pause between streamed tokens (e.g. "20ms")
//
// Prometheus metrics are served on /metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rhuss/llmclient/pkg/debug"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	debug.Init(debug.Options{})

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	port := envOrDefault("MOCK_PORT", "9090")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock backend starting", "port", port, "models", cfg.Models, "auth", cfg.APIKey != "", "malformed", cfg.Malformed)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("mock backend shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func configFromEnv() (mockConfig, error) {
	cfg := mockConfig{
		APIKey:    os.Getenv("MOCK_API_KEY"),
		Models:    strings.Split(envOrDefault("MOCK_MODELS", "mock-model"), ","),
		Malformed: os.Getenv("MOCK_MALFORMED") == "1",
	}
	if v := os.Getenv("MOCK_TOKEN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MOCK_TOKEN_DELAY: %w", err)
		}
		cfg.TokenDelay = d
	}
	return cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
