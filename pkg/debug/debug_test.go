package debug

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// withCategories swaps the enabled set for the duration of a test.
func withCategories(t *testing.T, s string) {
	t.Helper()
	orig := enabled.Load()
	setCategories(s)
	t.Cleanup(func() { enabled.Store(orig) })
}

// withDefaultLogger restores the default slog logger after a test that
// calls Init.
func withDefaultLogger(t *testing.T) {
	t.Helper()
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "transport", map[string]bool{"transport": true}},
		{"with spaces", " transport , streaming ", map[string]bool{"transport": true, "streaming": true}},
		{"uppercase normalized", "TRANSPORT,Bench", map[string]bool{"transport": true, "bench": true}},
		{"empty segments", "transport,,bench", map[string]bool{"transport": true, "bench": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len(got) = %d, want %d", len(got), len(tt.want))
			}
			for k := range tt.want {
				if !got[k] {
					t.Errorf("category %q missing", k)
				}
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	withCategories(t, "transport")

	if !Enabled("transport") {
		t.Error("transport should be enabled")
	}
	if Enabled("streaming") {
		t.Error("streaming should not be enabled")
	}

	setCategories("all")
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"TRACE":   LevelTrace,
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInit_JSONAndTraceLabel(t *testing.T) {
	withDefaultLogger(t)
	withCategories(t, "")
	t.Setenv("LLMCLIENT_DEBUG", "")
	t.Setenv("LLMCLIENT_LOG_LEVEL", "")

	var buf bytes.Buffer
	Init(Options{Categories: "streaming", Level: "trace", Format: "json", Output: &buf})

	Trace("streaming", "frame", "n", 1)
	Log("transport", "suppressed")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		t.Fatalf("expected one record, got %q", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["level"] != "TRACE" || rec["debug"] != "streaming" || rec["msg"] != "frame" {
		t.Errorf("record = %v", rec)
	}
	if !TraceEnabled("streaming") || TraceEnabled("transport") {
		t.Error("TraceEnabled does not respect categories")
	}
}

func TestInit_EnvOverridesOptions(t *testing.T) {
	withDefaultLogger(t)
	withCategories(t, "")
	t.Setenv("LLMCLIENT_DEBUG", "bench")
	t.Setenv("LLMCLIENT_LOG_LEVEL", "ERROR")

	var buf bytes.Buffer
	Init(Options{Categories: "transport", Level: "DEBUG", Output: &buf})

	if !Enabled("bench") || Enabled("transport") {
		t.Errorf("categories = %v, want env value", Categories())
	}
	slog.Warn("hidden")
	if buf.Len() != 0 {
		t.Errorf("WARN emitted at ERROR level: %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q", got)
	}
}
