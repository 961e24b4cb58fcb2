package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TransportError reports that a connection could not be established or was
// reset. It is never retried inside the client.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that a request exceeded a finite timeout. Streaming
// requests only produce it when a stream timeout was configured explicitly.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s %s", e.Timeout, e.Method, e.URL)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError reports a non-2xx HTTP status. Body holds the raw response
// body (possibly truncated) so callers can inspect server-specific detail.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("protocol error: HTTP %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("protocol error: HTTP %d", e.StatusCode)
}

// Message returns the error message from an OpenAI-style error envelope
// ({"error":{"message":...}}) when the body carries one, otherwise the raw
// body text.
func (e *ProtocolError) Message() string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return e.Body
}

// DecodeError reports a structurally invalid top-level JSON document in a
// buffered response. Per-event decode failures inside a stream are skipped
// instead of surfacing as DecodeError.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a ProtocolError with status 429.
func IsRateLimited(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}

// IsClientError reports whether err is a ProtocolError with a 4xx status.
func IsClientError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500
}

// IsServerError reports whether err is a ProtocolError with a 5xx status.
func IsServerError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.StatusCode >= 500
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
