package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/observability"
	"github.com/rhuss/llmclient/pkg/sse"
)

type mockConfig struct {
	APIKey     string
	Models     []string
	Malformed  bool
	TokenDelay time.Duration
}

type mockServer struct {
	cfg     mockConfig
	created int64
}

// newHandler returns the mock API. Health and metrics endpoints are never
// behind the API key.
func newHandler(cfg mockConfig) http.Handler {
	if len(cfg.Models) == 0 {
		cfg.Models = []string{"mock-model"}
	}
	s := &mockServer{cfg: cfg, created: time.Now().Unix()}

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	v1.HandleFunc("GET /v1/models", s.handleModels)

	mux := http.NewServeMux()
	mux.Handle("/v1/", s.authenticate(v1))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	return chain(withRequestID, withRecovery, withLogging(nil), observability.MetricsMiddleware)(mux)
}

func (s *mockServer) authenticate(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key", "authentication_error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": kind},
	})
}

// --- Request ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []api.Message `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens *int          `json:"max_tokens"`
}

// --- Chat completions ---

func (s *mockServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error")
		return
	}
	// Any model name is accepted, as local inference servers do.
	if req.Model == "" {
		req.Model = s.cfg.Models[0]
	}

	tokens, finish := generate(&req)
	debug.Log("mock", "mock completion", "model", req.Model, "stream", req.Stream, "tokens", len(tokens))

	if req.Stream {
		s.stream(w, r, &req, tokens, finish)
		return
	}

	text := strings.Join(tokens, "")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": s.created,
		"model":   req.Model,
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": finish,
		}},
		"usage": usage(&req, len(tokens)),
	})
}

func (s *mockServer) stream(w http.ResponseWriter, r *http.Request, req *chatRequest, tokens []string, finish api.FinishReason) {
	sse.SetHeaders(w)
	enc := sse.NewEncoder(w)

	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-mock-stream",
			"object":  "chat.completion.chunk",
			"created": s.created,
			"model":   req.Model,
			"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	enc.Comment("keep-alive")
	if err := enc.Encode(chunk(map[string]any{"role": "assistant"}, nil)); err != nil {
		return
	}

	for i, tok := range tokens {
		if s.cfg.TokenDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.cfg.TokenDelay):
			}
		}
		if err := enc.Encode(chunk(map[string]any{"content": tok}, nil)); err != nil {
			return
		}
		if s.cfg.Malformed && i == 0 {
			enc.WriteRaw([]byte(`{"id": truncated`))
			enc.WriteRaw([]byte(`"not an object"`))
		}
	}

	final := chunk(map[string]any{}, finish)
	final["usage"] = usage(req, len(tokens))
	enc.Encode(final)
	enc.Done()
}

// generate picks a deterministic answer for the request and splits it into
// word tokens, honoring max_tokens.
func generate(req *chatRequest) ([]string, api.FinishReason) {
	text := answer(req)
	tokens := strings.SplitAfter(text, " ")
	if req.MaxTokens != nil && *req.MaxTokens >= 0 && len(tokens) > *req.MaxTokens {
		return tokens[:*req.MaxTokens], api.FinishReasonLength
	}
	return tokens, api.FinishReasonStop
}

func answer(req *chatRequest) string {
	var system, user string
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem:
			system = m.Content
		case api.RoleUser:
			user = m.Content
		}
	}

	switch {
	case strings.HasPrefix(user, "warmup"):
		return "ok"
	case strings.Contains(strings.ToLower(user), "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	}

	// Quote the first retrieved document, from either prompt layout.
	if doc, ok := firstDocument(system); ok {
		return "According to the documents: " + doc
	}
	if _, ctx, ok := strings.Cut(user, "Context:\n"); ok {
		ctx, _, _ = strings.Cut(ctx, "\n\n")
		return "According to the context: " + ctx
	}
	return "Hello, nice day!"
}

func firstDocument(system string) (string, bool) {
	_, rest, ok := strings.Cut(system, "<document1>\n")
	if !ok {
		return "", false
	}
	doc, _, ok := strings.Cut(rest, "\n</document1>")
	return doc, ok
}

func usage(req *chatRequest, completionTokens int) map[string]any {
	prompt := 0
	for _, m := range req.Messages {
		prompt += len(strings.Fields(m.Content))
	}
	return map[string]any{
		"prompt_tokens":     prompt,
		"completion_tokens": completionTokens,
		"total_tokens":      prompt + completionTokens,
	}
}

// --- Models ---

func (s *mockServer) handleModels(w http.ResponseWriter, r *http.Request) {
	data := make([]map[string]any, 0, len(s.cfg.Models))
	for _, id := range s.cfg.Models {
		data = append(data, map[string]any{
			"id":       id,
			"object":   "model",
			"created":  s.created,
			"owned_by": "llmclient-mock",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}
