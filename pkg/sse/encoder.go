package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes frames in the format Decoder reads. When the underlying
// writer is an http.ResponseWriter each frame is flushed immediately.
type Encoder struct {
	w  io.Writer
	rc *http.ResponseController
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		e.rc = http.NewResponseController(rw)
	}
	return e
}

// SetHeaders sets the standard headers for an SSE response.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Encode marshals v as JSON and writes it as one data frame.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return e.WriteRaw(data)
}

// WriteRaw writes payload verbatim as one data frame. It is used to emit
// frames that are deliberately not JSON.
func (e *Encoder) WriteRaw(payload []byte) error {
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return err
	}
	return e.flush()
}

// Comment writes an SSE comment line, commonly used as a keep-alive.
func (e *Encoder) Comment(text string) error {
	if _, err := fmt.Fprintf(e.w, ": %s\n\n", text); err != nil {
		return err
	}
	return e.flush()
}

// Done writes the [DONE] sentinel.
func (e *Encoder) Done() error {
	return e.WriteRaw([]byte(DonePayload))
}

func (e *Encoder) flush() error {
	if e.rc == nil {
		return nil
	}
	return e.rc.Flush()
}
