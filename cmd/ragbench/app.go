package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/bench"
	"github.com/rhuss/llmclient/pkg/client"
	"github.com/rhuss/llmclient/pkg/config"
	"github.com/rhuss/llmclient/pkg/prompt"
	"github.com/rhuss/llmclient/pkg/storage"
	"github.com/rhuss/llmclient/pkg/storage/memory"
	"github.com/rhuss/llmclient/pkg/storage/postgres"
	redisstore "github.com/rhuss/llmclient/pkg/storage/redis"
)

// app holds the resources one ragbench invocation needs.
type app struct {
	cfg     *config.Config
	out     io.Writer
	client  *client.Client
	store   storage.RunStore
	metrics *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	c, err := client.New(client.Config{
		BaseURL:             cfg.Client.BaseURL,
		APIKey:              cfg.Client.APIKey,
		Timeout:             cfg.Client.Timeout,
		StreamTimeout:       cfg.Client.StreamTimeout,
		MaxIdleConnsPerHost: cfg.Client.MaxIdleConnsPerHost,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: out, client: c}

	a.store, err = openStore(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Observability.Metrics.Enabled {
		a.metrics = serveMetrics(cfg.Observability.Metrics)
	}
	return a, nil
}

// Close releases the client, the store and the metrics listener.
func (a *app) Close() error {
	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.client.Close())
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.RunStore, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	case "redis":
		store, err := redisstore.New(ctx, redisstore.Config{
			URL:       cfg.Redis.URL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		slog.Info("storage enabled", "type", "redis", "key_prefix", cfg.Redis.KeyPrefix)
		return store, nil
	default:
		slog.Info("storage disabled")
		return nil, nil
	}
}

func serveMetrics(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics listening", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func (a *app) retriever() (prompt.Retriever, error) {
	path := a.cfg.Bench.PassagesFile
	if path == "" {
		return nil, nil
	}
	if a.cfg.Bench.Retriever == "lexical" {
		return prompt.LoadLexical(path)
	}
	return prompt.LoadPassageFile(path)
}

func (a *app) listModels(ctx context.Context) error {
	list, err := a.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	for _, m := range list.Data {
		if m.OwnedBy != "" {
			fmt.Fprintf(a.out, "%s\t%s\n", m.ID, m.OwnedBy)
		} else {
			fmt.Fprintf(a.out, "%s\n", m.ID)
		}
	}
	return nil
}

func (a *app) listRuns(ctx context.Context, n int) error {
	if a.store == nil {
		return errors.New("run history needs storage.type memory, postgres or redis")
	}
	runs, err := a.store.ListRuns(ctx, storage.ListOptions{Model: a.cfg.Bench.Model, Limit: n})
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	for _, r := range runs {
		stats := bench.Compute(r.Durations)
		fmt.Fprintf(a.out, "%s  %s  %-8s stream=%-5t n=%d mean=%.4fs\n",
			r.CreatedAt.Format(time.RFC3339), r.ID, r.Format, r.Stream, stats.N, stats.Mean.Seconds())
	}
	return nil
}

func (a *app) bench(ctx context.Context) error {
	b := a.cfg.Bench
	if b.Query == "" {
		return errors.New("a query is required: set bench.query, --query or pass it as arguments")
	}

	retriever, err := a.retriever()
	if err != nil {
		return err
	}

	format, err := prompt.ParseFormat(b.PromptFormat)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	opts := bench.Options{
		Model:       b.Model,
		Query:       b.Query,
		Retriever:   retriever,
		TopK:        b.TopK,
		Format:      format,
		Runs:        b.Runs,
		Concurrency: b.Concurrency,
		Warmup:      b.Warmup,
		Stream:      b.Stream,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
		Extra:       b.Extra,
		OnPrompt: func(messages []api.Message) {
			if b.DebugPrompt {
				fmt.Fprintf(a.out, "\n%s\nDEBUG: Prompt sent to LLM:\n%s\n%s%s\n\n", rule('='), rule('='), prompt.Render(messages), rule('='))
			}
		},
		OnCall: func(c bench.Call) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(a.out, "  Run %d/%d: %.4fs\n", c.Index+1, b.Runs, c.Duration.Seconds())
		},
	}

	fmt.Fprintf(a.out, "Query: %s\n", b.Query)
	fmt.Fprintf(a.out, "Using prompt format: %s\n", format)
	fmt.Fprintf(a.out, "Running LLM generation %d times (temperature=%g, max_tokens=%d)\n\n", b.Runs, b.Temperature, b.MaxTokens)

	runner := &bench.Runner{Completions: a.client.Chat.Completions, Store: a.store}
	report, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nOutput: %s\n\n", report.Run.Output)
	report.WriteSummary(a.out)
	return nil
}
