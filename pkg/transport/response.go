package transport

import (
	"bytes"
	"io"
	"net/http"
	"sync"

	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/observability"
)

// Response is the result of Session.Request.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body holds the complete body of a buffered response. It is nil for
	// streaming responses.
	Body []byte

	stream *streamBody
}

// Streaming reports whether the response body is still open.
func (r *Response) Streaming() bool {
	return r.stream != nil
}

// Reader returns the body as a reader. For streaming responses reads block
// on the network; read failures are reported as *api.TransportError or
// *api.TimeoutError.
func (r *Response) Reader() io.Reader {
	if r.stream != nil {
		return r.stream
	}
	return bytes.NewReader(r.Body)
}

// Close releases the connection of a streaming response. It is idempotent
// and a no-op for buffered responses.
func (r *Response) Close() error {
	if r.stream == nil {
		return nil
	}
	return r.stream.Close()
}

// streamBody wraps an open response body, mapping read errors onto the
// error taxonomy and releasing request resources exactly once.
type streamBody struct {
	body io.ReadCloser
	call *call
	once sync.Once

	mu      sync.Mutex
	closed  bool
	readErr error // first classified read failure; ends the span as an error
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && err != io.EOF {
		err = b.call.classify(err)
		b.mu.Lock()
		if b.readErr == nil && !b.closed {
			b.readErr = err
		}
		b.mu.Unlock()
	}
	return n, err
}

func (b *streamBody) Close() error {
	var err error
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		readErr := b.readErr
		b.mu.Unlock()

		err = b.body.Close()
		if readErr != nil {
			observability.ClientStreamFailuresTotal.WithLabelValues(b.call.path, statusLabel(readErr)).Inc()
		}
		b.call.end(readErr)
		observability.ClientStreamsActive.Dec()
		debug.Log("streaming", "stream closed", "url", b.call.url, "error", readErr)
	})
	return err
}
