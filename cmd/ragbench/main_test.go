package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/rhuss/llmclient/pkg/config"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"m1","owned_by":"acme"},{"id":"m2"}]}`))
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"streamed answer\"}}]}\n\n")
			io.WriteString(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":" an answer "},"finish_reason":"stop"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LLMCLIENT_CONFIG", "")
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

func TestParseArgs_OnlyExplicitOverrides(t *testing.T) {
	opts, query, err := parseArgs([]string{"-f", "c.yaml", "--runs", "3", "--no-warmup", "what", "is", "it?"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.Config != "c.yaml" {
		t.Errorf("config path = %q", opts.Config)
	}

	cfg := config.Defaults()
	cfg.Bench.Model = "from-file"
	opts.apply(query)(&cfg)

	if cfg.Bench.Runs != 3 {
		t.Errorf("runs = %d, want 3", cfg.Bench.Runs)
	}
	if cfg.Bench.Warmup {
		t.Error("warmup should be disabled")
	}
	if cfg.Bench.Query != "what is it?" {
		t.Errorf("query = %q, want positional arguments", cfg.Bench.Query)
	}
	if cfg.Bench.Model != "from-file" {
		t.Errorf("model = %q, unset flag must not override", cfg.Bench.Model)
	}
	if cfg.Bench.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, unset flag must not override", cfg.Bench.MaxTokens)
	}
}

func TestParseArgs_ZeroValuesOverride(t *testing.T) {
	opts, _, err := parseArgs([]string{"--max-tokens", "0", "--temperature", "0.7"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	cfg := config.Defaults()
	opts.apply("")(&cfg)
	if cfg.Bench.MaxTokens != 0 {
		t.Errorf("max_tokens = %d, want explicit 0", cfg.Bench.MaxTokens)
	}
	if cfg.Bench.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", cfg.Bench.Temperature)
	}
}

func TestParseArgs_Extra(t *testing.T) {
	opts, _, err := parseArgs([]string{"--extra", "top_p=0.9", "-x", "seed=7", "-x", "user=bench", "-x", "logprobs=true"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	cfg := config.Defaults()
	cfg.Bench.Extra = map[string]any{"top_p": 0.5, "presence_penalty": 1.0}
	opts.apply("")(&cfg)

	want := map[string]any{
		"top_p":            0.9,
		"seed":             float64(7),
		"user":             "bench",
		"logprobs":         true,
		"presence_penalty": 1.0,
	}
	if len(cfg.Bench.Extra) != len(want) {
		t.Fatalf("extra = %v, want %v", cfg.Bench.Extra, want)
	}
	for k, v := range want {
		if cfg.Bench.Extra[k] != v {
			t.Errorf("extra[%q] = %v (%T), want %v", k, cfg.Bench.Extra[k], cfg.Bench.Extra[k], v)
		}
	}
}

func TestParseArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"--nope"},
		{"--format", "chatml"},
		{"--runs", "many"},
	} {
		if _, _, err := parseArgs(args); err == nil {
			t.Errorf("parseArgs(%v) expected error", args)
		}
	}
}

func TestRun_Buffered(t *testing.T) {
	srv := newServer(t)

	out, err := runCmd(t, "--base-url", srv.URL+"/v1", "--runs", "2", "--query", "What is the song Bossy about?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		"Run 1/2:",
		"Run 2/2:",
		"Output: an answer",
		"LLM generation (buffered, avg over 2 runs)",
		"Run ID:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_StreamWithPassages(t *testing.T) {
	srv := newServer(t)
	passages := t.TempDir() + "/passages.json"
	writeFile(t, passages, `["Bossy is a song by Kelis.", "It features Too $hort."]`)

	out, err := runCmd(t,
		"--base-url", srv.URL+"/v1",
		"--runs", "1",
		"--stream",
		"--passages", passages,
		"--retriever", "lexical",
		"--top-k", "1",
		"--debug-prompt",
		"Bossy song",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		"DEBUG: Prompt sent to LLM:",
		"<document1>\nBossy is a song by Kelis.\n</document1>",
		"Output: streamed answer",
		"Time to first content:",
		"(1 passages)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ListModels(t *testing.T) {
	srv := newServer(t)

	out, err := runCmd(t, "--base-url", srv.URL+"/v1", "--list-models")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "m1\tacme\nm2\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRun_RedisHistory(t *testing.T) {
	srv := newServer(t)
	mr := miniredis.RunT(t)
	t.Setenv("LLMCLIENT_REDIS_URL", "redis://"+mr.Addr())

	out, err := runCmd(t, "--base-url", srv.URL+"/v1", "--storage", "redis", "--runs", "2", "--no-warmup", "q")
	if err != nil {
		t.Fatalf("bench run: %v", err)
	}
	_, id, ok := strings.Cut(out, "Run ID:")
	if !ok {
		t.Fatalf("no run ID in output:\n%s", out)
	}
	id = strings.TrimSpace(id)

	out, err = runCmd(t, "--base-url", srv.URL+"/v1", "--storage", "redis", "--history", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "n=2") {
		t.Errorf("history missing run %s:\n%s", id, out)
	}
}

func TestRun_Errors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing base url", []string{"--query", "q"}, "client.base_url is required"},
		{"missing query", []string{"--base-url", srv.URL + "/v1"}, "a query is required"},
		{"history without storage", []string{"--base-url", srv.URL + "/v1", "--storage", "none", "--history", "5"}, "run history needs storage"},
		{"missing passages file", []string{"--base-url", srv.URL + "/v1", "--passages", "/nonexistent.json", "q"}, "nonexistent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LLMCLIENT_BASE_URL", "")
			_, err := runCmd(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestRun_ExtraKeysReachServer(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	_, err := runCmd(t, "--base-url", srv.URL+"/v1", "--runs", "1", "--no-warmup", "--storage", "none",
		"-x", "top_p=0.25", "-x", "seed=42", "--query", "hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected one request, got %d", len(bodies))
	}
	if bodies[0]["top_p"] != 0.25 || bodies[0]["seed"] != float64(42) {
		t.Errorf("extra keys missing from request body: %v", bodies[0])
	}
	if bodies[0]["stream"] != false {
		t.Errorf("stream = %v, want false", bodies[0]["stream"])
	}
}

func TestRun_ReservedExtraKeyRejected(t *testing.T) {
	srv := newServer(t)
	_, err := runCmd(t, "--base-url", srv.URL+"/v1", "-x", "stream=true", "--query", "hi")
	if err == nil || !strings.Contains(err.Error(), `bench.extra must not set "stream"`) {
		t.Fatalf("expected reserved key error, got %v", err)
	}
}
