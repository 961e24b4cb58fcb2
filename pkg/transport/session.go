package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/observability"
)

const (
	// DefaultTimeout applies to buffered requests when none is configured.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxIdleConnsPerHost sizes the pool for concurrent callers
	// hitting a single server.
	DefaultMaxIdleConnsPerHost = 16

	maxErrorBody = 64 * 1024
	tracerName   = "github.com/rhuss/llmclient/pkg/transport"
)

// ErrSessionClosed is returned by Request after Close has been called.
var ErrSessionClosed = errors.New("transport: session closed")

// Config configures a Session.
type Config struct {
	// BaseURL is prefixed to every request path. A trailing slash is removed.
	BaseURL string

	// Timeout bounds buffered requests. Defaults to DefaultTimeout.
	Timeout time.Duration

	// StreamTimeout bounds streaming requests, including the time spent
	// reading the body. Zero means unbounded.
	StreamTimeout time.Duration

	// MaxIdleConnsPerHost defaults to DefaultMaxIdleConnsPerHost.
	MaxIdleConnsPerHost int

	// Transport replaces the pooled transport. Mainly useful in tests.
	Transport http.RoundTripper
}

// Session issues requests over one connection pool.
type Session struct {
	baseURL       string
	timeout       time.Duration
	streamTimeout time.Duration

	client *http.Client
	pool   http.RoundTripper
	tracer trace.Tracer

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewSession creates a Session. It does not dial until the first request.
func NewSession(cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport: BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout < 0 || cfg.StreamTimeout < 0 {
		return nil, errors.New("transport: timeouts must not be negative")
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	pool := cfg.Transport
	if pool == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		pool = t
	}

	return &Session{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		// Deadlines are enforced per request through the context, so the
		// client itself carries no Timeout.
		client: &http.Client{Transport: otelhttp.NewTransport(pool)},
		pool:   pool,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the normalized base URL.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Request describes one HTTP call relative to the session base URL.
type Request struct {
	Method string
	Path   string
	Header http.Header

	// Body is JSON-encoded when non-nil.
	Body any

	// Stream keeps the body open for incremental reads.
	Stream bool

	// Timeout overrides the session timeout for this request. Zero keeps
	// the session default, which for streaming requests may be unbounded.
	Timeout time.Duration
}

func (s *Session) effectiveTimeout(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if req.Stream {
		return s.streamTimeout
	}
	return s.timeout
}

// Request performs req. For buffered requests the returned Response holds
// the complete body. For streaming requests the caller must Close the
// Response, which releases the connection.
func (s *Session) Request(ctx context.Context, req *Request) (*Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	url := s.baseURL + req.Path

	var payload []byte
	var body io.Reader
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	timeout := s.effectiveTimeout(req)
	var reqCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}

	reqCtx, span := s.tracer.Start(reqCtx, "llmclient "+req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llmclient.path", req.Path),
			attribute.Bool("llmclient.stream", req.Stream),
		),
	)

	call := &call{
		session: s,
		parent:  ctx,
		ctx:     reqCtx,
		cancel:  cancel,
		span:    span,
		method:  req.Method,
		path:    req.Path,
		url:     url,
		stream:  req.Stream,
		timeout: timeout,
		start:   time.Now(),
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, url, body)
	if err != nil {
		call.end(err)
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		if req.Stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		} else {
			httpReq.Header.Set("Accept", "application/json")
		}
	}

	debug.Log("transport", "request", "method", req.Method, "url", url, "stream", req.Stream, "timeout", timeout)
	if debug.TraceEnabled("transport") && payload != nil {
		debug.Trace("transport", "request body", "body", string(payload))
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		err = call.classify(err)
		call.observe(statusLabel(err))
		call.end(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		httpResp.Body.Close()
		perr := &api.ProtocolError{StatusCode: httpResp.StatusCode, Body: string(data)}
		call.observe(observability.StatusClass(httpResp.StatusCode))
		call.end(perr)
		debug.Log("transport", "error status", "url", url, "status", httpResp.StatusCode, "body", debug.Truncate(string(data), 200))
		return nil, perr
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
	}

	if !req.Stream {
		data, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			err = call.classify(err)
			call.observe(statusLabel(err))
			call.end(err)
			return nil, err
		}
		resp.Body = data
		call.observe(observability.StatusClass(httpResp.StatusCode))
		call.end(nil)
		debug.Log("transport", "response", "url", url, "status", httpResp.StatusCode, "bytes", len(data), "duration", time.Since(call.start))
		return resp, nil
	}

	call.observe(observability.StatusClass(httpResp.StatusCode))
	observability.ClientStreamsActive.Inc()
	resp.stream = &streamBody{body: httpResp.Body, call: call}
	debug.Log("streaming", "stream opened", "url", url, "status", httpResp.StatusCode, "ttfb", time.Since(call.start))
	return resp, nil
}

// Close releases idle pooled connections and rejects further requests.
// Open streaming responses keep their connection until they are closed.
// Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if ci, ok := s.pool.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
		debug.Log("transport", "session closed", "base_url", s.baseURL)
	})
	return nil
}

// call carries the per-request state shared by error classification,
// metrics, and span completion.
type call struct {
	session *Session
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span

	method  string
	path    string
	url     string
	stream  bool
	timeout time.Duration
	start   time.Time
}

// classify maps a request or body-read error to the api error taxonomy.
func (c *call) classify(err error) error {
	if c.timeout > 0 && c.parent.Err() == nil && errors.Is(c.ctx.Err(), context.DeadlineExceeded) {
		return &api.TimeoutError{Method: c.method, URL: c.url, Timeout: c.timeout, Err: err}
	}
	return &api.TransportError{Method: c.method, URL: c.url, Err: err}
}

func (c *call) observe(status string) {
	observability.ClientRequestsTotal.WithLabelValues(c.path, status).Inc()
	observability.ClientRequestDuration.
		WithLabelValues(c.path, strconv.FormatBool(c.stream)).
		Observe(time.Since(c.start).Seconds())
}

func (c *call) end(err error) {
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.End()
	c.cancel()
}

func statusLabel(err error) string {
	if api.IsTimeout(err) {
		return observability.StatusTimeout
	}
	return observability.StatusTransportError
}
