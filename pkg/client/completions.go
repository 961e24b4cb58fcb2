package client

import (
	"context"
	"maps"
	"net/http"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/transport"
)

// Params are the inputs of a chat completion call.
type Params struct {
	Model    string
	Messages []api.Message

	// Temperature and MaxTokens are omitted from the request when nil.
	Temperature *float64
	MaxTokens   *int

	// Extra holds server-specific keys, sent verbatim. Keys also set by the
	// fields above are overwritten by them; "model", "messages" and
	// "stream" are always controlled by the client.
	Extra map[string]any
}

// Float64 returns a pointer to v, for Params.Temperature.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for Params.MaxTokens.
func Int(v int) *int { return &v }

func (p Params) payload(stream bool) map[string]any {
	body := make(map[string]any, len(p.Extra)+5)
	maps.Copy(body, p.Extra)

	messages := p.Messages
	if messages == nil {
		messages = []api.Message{}
	}
	body["model"] = p.Model
	body["messages"] = messages
	body["stream"] = stream
	if p.Temperature != nil {
		body["temperature"] = *p.Temperature
	}
	if p.MaxTokens != nil {
		body["max_tokens"] = *p.MaxTokens
	}
	return body
}

// CompletionsService creates chat completions.
type CompletionsService struct {
	session *transport.Session
	header  http.Header
}

// Create performs a buffered completion and returns the full response.
func (s *CompletionsService) Create(ctx context.Context, p Params) (*api.Completion, error) {
	resp, err := s.session.Request(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Header: s.header,
		Body:   p.payload(false),
	})
	if err != nil {
		return nil, err
	}
	return api.DecodeCompletion(resp.Body)
}

// CreateStream starts a streamed completion. The returned Stream must be
// closed or drained.
func (s *CompletionsService) CreateStream(ctx context.Context, p Params) (*Stream, error) {
	resp, err := s.session.Request(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Header: s.header,
		Body:   p.payload(true),
		Stream: true,
	})
	if err != nil {
		return nil, err
	}
	return newStream(resp, p.Model), nil
}
