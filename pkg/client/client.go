package client

import (
	"net/http"
	"time"

	"github.com/rhuss/llmclient/pkg/transport"
)

// DefaultAPIKey is sent when no key is configured. Local servers typically
// ignore the Authorization header entirely.
const DefaultAPIKey = "dummy"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080/v1".
	BaseURL string

	// APIKey is sent as a bearer token. Defaults to DefaultAPIKey.
	APIKey string

	// Timeout bounds buffered calls. Defaults to transport.DefaultTimeout.
	Timeout time.Duration

	// StreamTimeout bounds streaming calls. Zero means unbounded.
	StreamTimeout time.Duration

	// MaxIdleConnsPerHost sizes the connection pool.
	MaxIdleConnsPerHost int

	// Transport replaces the pooled HTTP transport.
	Transport http.RoundTripper
}

// Client talks to one OpenAI-compatible server.
type Client struct {
	Chat   *ChatService
	Models *ModelsService

	session *transport.Session
}

// ChatService groups chat endpoints.
type ChatService struct {
	Completions *CompletionsService
}

// New creates a Client. The caller must Close it when done.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}

	session, err := transport.NewSession(transport.Config{
		BaseURL:             cfg.BaseURL,
		Timeout:             cfg.Timeout,
		StreamTimeout:       cfg.StreamTimeout,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		Transport:           cfg.Transport,
	})
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	return &Client{
		Chat: &ChatService{
			Completions: &CompletionsService{session: session, header: header},
		},
		Models:  &ModelsService{session: session, header: header},
		session: session,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.session.BaseURL()
}

// Close releases the connection pool. It is safe to call more than once.
func (c *Client) Close() error {
	return c.session.Close()
}
