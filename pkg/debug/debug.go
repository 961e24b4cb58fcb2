// Package debug configures logging for llmclient binaries and provides
// category-based debug output.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): LLMCLIENT_DEBUG env or the logging.debug config key
//   - Levels (HOW MUCH detail): LLMCLIENT_LOG_LEVEL env or the logging.level config key
//
// Usage:
//
//	debug.Log("transport", "request", "method", "POST", "url", url)
//	if debug.Enabled("streaming") { /* expensive formatting */ }
//
// Categories: transport, streaming, client, bench, storage, config, mock, all.
// The mock category covers the mock backend's server-side records.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE. At TRACE, request bodies are
// logged untruncated.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// Options configures Init. Environment variables take precedence over the
// Categories and Level fields.
type Options struct {
	Categories string
	Level      string
	// Format is "text" (default) or "json".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// enabled holds the active category set. It is swapped atomically so that
// library code may call Enabled from any goroutine.
var enabled atomic.Pointer[map[string]bool]

func init() {
	setCategories(os.Getenv("LLMCLIENT_DEBUG"))
}

// Init installs the default slog logger and the enabled categories.
func Init(opts Options) {
	cats := os.Getenv("LLMCLIENT_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	setCategories(cats)

	level := os.Getenv("LLMCLIENT_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	m := *enabled.Load()
	return m["all"] || m[category]
}

// Log emits a DEBUG record for the given category. It is a no-op when the
// category is disabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record for the given category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether TRACE output is active for the category.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Logger returns the default logger annotated with the category, for
// components that log at INFO and above regardless of debug categories.
func Logger(category string) *slog.Logger {
	return slog.Default().With("component", category)
}

// ParseLevel converts a level string to a slog.Level. Unknown values map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories.
func Categories() []string {
	var result []string
	for k := range *enabled.Load() {
		result = append(result, k)
	}
	return result
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func setCategories(s string) {
	m := parseCategories(s)
	enabled.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
