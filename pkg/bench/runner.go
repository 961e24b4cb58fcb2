// Package bench measures completion latency of an OpenAI-compatible
// server for a retrieval-augmented prompt.
//
// A benchmark retrieves passages once, builds the prompt, optionally warms
// the server up, and then times a fixed number of identical completion
// calls. Calls may run concurrently over the client's shared connection
// pool. Nothing is retried: the first failing call aborts the benchmark.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/client"
	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/observability"
	"github.com/rhuss/llmclient/pkg/prompt"
	"github.com/rhuss/llmclient/pkg/storage"
)

// warmupPrompt is long enough to exercise the server's prompt cache.
var warmupPrompt = strings.Repeat("warmup ", 100)

// Completer is the part of the client a benchmark drives.
// *client.CompletionsService implements it.
type Completer interface {
	Create(ctx context.Context, p client.Params) (*api.Completion, error)
	CreateStream(ctx context.Context, p client.Params) (*client.Stream, error)
}

// Options describe one benchmark.
type Options struct {
	Model string
	Query string

	// Retriever supplies context passages. With a nil Retriever, TopK of
	// zero or FormatNone, the query is sent without context.
	Retriever prompt.Retriever
	TopK      int
	Format    prompt.Format

	Runs        int
	Concurrency int
	Warmup      bool
	Stream      bool

	Temperature float64
	MaxTokens   int
	Extra       map[string]any

	// OnPrompt, if set, receives the assembled messages before any call.
	OnPrompt func([]api.Message)

	// OnCall, if set, is called after every successful timed call. It may
	// be called concurrently when Concurrency > 1.
	OnCall func(Call)
}

// Call is the outcome of one timed completion call.
type Call struct {
	Index        int
	Duration     time.Duration
	FirstContent time.Duration
	Output       string
}

// Report is the result of a benchmark.
type Report struct {
	Run *storage.Run

	Passages  []prompt.Passage
	Messages  []api.Message
	Retrieval time.Duration

	// Warmup is zero when warmup was disabled or failed.
	Warmup    time.Duration
	WarmupErr error

	Latency      Stats
	FirstContent Stats
}

// Runner executes benchmarks.
type Runner struct {
	Completions Completer

	// Store, if set, receives every completed run.
	Store storage.RunStore
}

func (o *Options) validate() error {
	var errs []error
	if o.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if o.Runs <= 0 {
		errs = append(errs, fmt.Errorf("runs must be > 0, got %d", o.Runs))
	}
	if _, err := prompt.ParseFormat(string(o.Format)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o *Options) params(messages []api.Message) client.Params {
	p := client.Params{
		Model:       o.Model,
		Messages:    messages,
		Temperature: client.Float64(o.Temperature),
		Extra:       o.Extra,
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = client.Int(o.MaxTokens)
	}
	return p
}

// Run executes a benchmark. On failure the returned error wraps the
// cause, and no run is stored.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	report := &Report{}

	if opts.Retriever != nil && opts.TopK > 0 && opts.Format != prompt.FormatNone {
		start := time.Now()
		passages, err := opts.Retriever.Retrieve(ctx, opts.Query, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("retrieving passages: %w", err)
		}
		report.Retrieval = time.Since(start)
		report.Passages = passages
		debug.Log("bench", "retrieved passages", "count", len(passages), "duration", report.Retrieval)
	}

	messages, err := prompt.Build(opts.Format, opts.Query, report.Passages)
	if err != nil {
		return nil, err
	}
	report.Messages = messages
	if opts.OnPrompt != nil {
		opts.OnPrompt(messages)
	}

	if opts.Warmup {
		report.Warmup, report.WarmupErr = r.warmup(ctx, opts)
	}

	calls := make([]Call, opts.Runs)
	params := opts.params(messages)
	mode := "buffered"
	if opts.Stream {
		mode = "stream"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range opts.Runs {
		g.Go(func() error {
			var call Call
			var err error
			if opts.Stream {
				call, err = r.streamCall(gctx, params)
			} else {
				call, err = r.bufferedCall(gctx, params)
			}
			if err != nil {
				return fmt.Errorf("run %d/%d: %w", i+1, opts.Runs, err)
			}
			call.Index = i
			calls[i] = call

			observability.BenchLatency.WithLabelValues(opts.Model, mode).Observe(call.Duration.Seconds())
			if opts.Stream {
				observability.BenchFirstContentLatency.WithLabelValues(opts.Model).Observe(call.FirstContent.Seconds())
			}
			debug.Log("bench", "call finished", "run", i+1, "duration", call.Duration, "first_content", call.FirstContent)
			if opts.OnCall != nil {
				opts.OnCall(call)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := &storage.Run{
		ID:        uuid.New(),
		Model:     opts.Model,
		Format:    string(opts.Format),
		Stream:    opts.Stream,
		Query:     opts.Query,
		Durations: make([]time.Duration, len(calls)),
		Output:    calls[0].Output,
		CreatedAt: time.Now().UTC(),
	}
	for i, c := range calls {
		run.Durations[i] = c.Duration
		if opts.Stream {
			run.FirstContent = append(run.FirstContent, c.FirstContent)
		}
	}
	report.Run = run
	report.Latency = Compute(run.Durations)
	report.FirstContent = Compute(run.FirstContent)

	if r.Store != nil {
		if err := r.Store.SaveRun(ctx, run); err != nil {
			return report, fmt.Errorf("saving run: %w", err)
		}
	}

	return report, nil
}

// warmup sends one throwaway request. Failures are logged and returned but
// never abort the benchmark.
func (r *Runner) warmup(ctx context.Context, opts Options) (time.Duration, error) {
	p := opts.params([]api.Message{{Role: api.RoleUser, Content: warmupPrompt}})

	start := time.Now()
	if _, err := r.Completions.Create(ctx, p); err != nil {
		slog.Warn("warmup failed, first call may be slower", "model", opts.Model, "error", err)
		return 0, err
	}
	d := time.Since(start)
	debug.Log("bench", "warmup finished", "duration", d)
	return d, nil
}

func (r *Runner) bufferedCall(ctx context.Context, p client.Params) (Call, error) {
	start := time.Now()
	completion, err := r.Completions.Create(ctx, p)
	if err != nil {
		return Call{}, err
	}
	return Call{
		Duration: time.Since(start),
		Output:   strings.TrimSpace(completion.Text()),
	}, nil
}

func (r *Runner) streamCall(ctx context.Context, p client.Params) (Call, error) {
	start := time.Now()
	stream, err := r.Completions.CreateStream(ctx, p)
	if err != nil {
		return Call{}, err
	}

	var call Call
	var acc api.Accumulator
	for chunk, err := range stream.All() {
		if err != nil {
			return Call{}, err
		}
		if call.FirstContent == 0 {
			for _, ch := range chunk.Choices {
				if ch.Delta.Text() != "" {
					call.FirstContent = time.Since(start)
					break
				}
			}
		}
		acc.Add(&chunk)
	}
	call.Duration = time.Since(start)
	call.Output = strings.TrimSpace(acc.Completion().Text())
	return call, nil
}
