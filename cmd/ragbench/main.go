// Command ragbench measures chat completion latency against an
// OpenAI-compatible server, optionally with retrieved passages in the
// prompt.
//
// Settings come from the config file (see pkg/config) with flags taking
// precedence. Remaining arguments, if any, are joined as the query:
//
//	ragbench --base-url http://localhost:8080/v1 --passages chunks.json What is the song Bossy about?
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/rhuss/llmclient/pkg/config"
	"github.com/rhuss/llmclient/pkg/debug"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Stdout.WriteString(ferr.Message + "\n")
			return
		}
		slog.Error("ragbench failed", "error", err)
		os.Exit(1)
	}
}

// Options are the command-line flags. Pointer fields override the loaded
// config only when given.
type Options struct {
	Config     string `short:"f" long:"config" description:"Path to config file"`
	ListModels bool   `long:"list-models" description:"List the server's models and exit"`
	History    int    `long:"history" value-name:"N" description:"Show the N most recent stored runs and exit"`

	BaseURL     *string        `long:"base-url" description:"Server base URL, e.g. http://localhost:8080/v1"`
	APIKey      *string        `long:"api-key" description:"Bearer token"`
	Timeout     *time.Duration `long:"timeout" description:"Per-request timeout"`
	Model       *string        `short:"m" long:"model" description:"Model name"`
	Query       *string        `short:"q" long:"query" description:"Question to ask"`
	Passages    *string        `short:"p" long:"passages" description:"JSON array of passages"`
	Retriever   *string        `long:"retriever" choice:"passages" choice:"lexical" description:"Passage selection"`
	TopK        *int           `short:"k" long:"top-k" description:"Number of passages in the prompt"`
	Format      *string        `long:"format" choice:"none" choice:"default" choice:"lfm2-rag" description:"Prompt format"`
	Runs        *int           `short:"n" long:"runs" description:"Number of timed calls"`
	Concurrency *int           `short:"c" long:"concurrency" description:"Maximum calls in flight"`
	Temperature *float64       `long:"temperature" description:"Sampling temperature"`
	MaxTokens   *int           `long:"max-tokens" description:"Completion token limit, 0 for server default"`
	Storage     *string        `long:"storage" choice:"none" choice:"memory" choice:"postgres" choice:"redis" description:"Run storage"`

	Extra map[string]string `short:"x" long:"extra" key-value-delimiter:"=" value-name:"KEY=VALUE" description:"Extra request body key, repeatable; JSON values are decoded"`

	Stream      bool `short:"s" long:"stream" description:"Stream responses and measure time to first content"`
	NoWarmup    bool `long:"no-warmup" description:"Skip the warmup request"`
	DebugPrompt bool `long:"debug-prompt" description:"Print the assembled prompt"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, query, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.Config, opts.apply(query))
	if err != nil {
		return err
	}

	debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     stderr,
	})

	app, err := newApp(ctx, cfg, stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case opts.ListModels:
		return app.listModels(ctx)
	case opts.History > 0:
		return app.listRuns(ctx, opts.History)
	default:
		return app.bench(ctx)
	}
}

// parseArgs returns the parsed flags and the positional arguments joined
// as a query.
func parseArgs(args []string) (*Options, string, error) {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] [query...]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, "", err
	}
	return opts, strings.Join(rest, " "), nil
}

// apply returns a config override for the flags given on the command line.
func (o *Options) apply(query string) func(*config.Config) {
	return func(c *config.Config) {
		set(&c.Client.BaseURL, o.BaseURL)
		set(&c.Client.APIKey, o.APIKey)
		set(&c.Client.Timeout, o.Timeout)
		set(&c.Bench.Model, o.Model)
		set(&c.Bench.Query, o.Query)
		set(&c.Bench.PassagesFile, o.Passages)
		set(&c.Bench.Retriever, o.Retriever)
		set(&c.Bench.TopK, o.TopK)
		set(&c.Bench.PromptFormat, o.Format)
		set(&c.Bench.Runs, o.Runs)
		set(&c.Bench.Concurrency, o.Concurrency)
		set(&c.Bench.Temperature, o.Temperature)
		set(&c.Bench.MaxTokens, o.MaxTokens)
		set(&c.Storage.Type, o.Storage)
		if query != "" {
			c.Bench.Query = query
		}
		if o.Stream {
			c.Bench.Stream = true
		}
		if o.NoWarmup {
			c.Bench.Warmup = false
		}
		if o.DebugPrompt {
			c.Bench.DebugPrompt = true
		}
		if len(o.Extra) > 0 && c.Bench.Extra == nil {
			c.Bench.Extra = make(map[string]any, len(o.Extra))
		}
		for k, v := range o.Extra {
			c.Bench.Extra[k] = extraValue(v)
		}
	}
}

// extraValue decodes v as JSON so numbers and booleans keep their type.
// Anything else is sent as a string.
func extraValue(v string) any {
	var decoded any
	if err := json.Unmarshal([]byte(v), &decoded); err != nil {
		return v
	}
	return decoded
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func rule(c byte) string {
	return strings.Repeat(string(c), 60)
}
