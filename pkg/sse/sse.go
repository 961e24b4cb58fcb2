// Package sse implements the restricted Server-Sent Events subset used by
// OpenAI-style streaming endpoints: single-line "data: <payload>" frames
// separated by blank lines, terminated by a "data: [DONE]" sentinel.
//
// Comment, id, event and retry fields are ignored, and multi-line data
// folding is not supported.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// DonePayload is the sentinel payload that ends a stream.
const DonePayload = "[DONE]"

const (
	dataPrefix = "data: "

	initialBufferSize = 64 * 1024
	// MaxLineSize bounds a single SSE line. Larger lines fail the stream with
	// bufio.ErrTooLong.
	MaxLineSize = 1 << 20
)

var errInvalidJSON = errors.New("payload is not valid JSON")

// Decoder reads event payloads from a line stream. It is single-pass and
// not safe for concurrent use.
//
// Both termination paths, the [DONE] sentinel and the underlying reader
// reaching EOF, end iteration with Err() == nil.
type Decoder struct {
	scanner *bufio.Scanner
	data    []byte
	err     error
	done    bool
	dropped int

	// OnDrop, if set, is called for every frame skipped because its payload
	// is not valid JSON. The payload slice is only valid during the call.
	OnDrop func(payload []byte, err error)
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferSize), MaxLineSize)
	return &Decoder{scanner: scanner}
}

// Next advances to the next well-formed event payload, blocking on the
// underlying reader as needed. It returns false once the stream has ended
// or failed; Err distinguishes the two.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}

	for d.scanner.Scan() {
		line := bytes.TrimRight(d.scanner.Bytes(), " \t\r\n")
		if len(line) == 0 {
			continue
		}

		payload, ok := bytes.CutPrefix(line, []byte(dataPrefix))
		if !ok {
			continue
		}

		if string(payload) == DonePayload {
			d.finish(nil)
			return false
		}

		if !json.Valid(payload) {
			d.dropped++
			if d.OnDrop != nil {
				d.OnDrop(payload, errInvalidJSON)
			}
			continue
		}

		// The scanner reuses its buffer on the next Scan.
		d.data = append(d.data[:0], payload...)
		return true
	}

	d.finish(d.scanner.Err())
	return false
}

// Data returns the payload of the current event. It is valid until the next
// call to Next.
func (d *Decoder) Data() []byte {
	return d.data
}

// Err returns the read error that ended the stream, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Dropped returns the number of frames skipped because their payload was
// not valid JSON.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Skip records a frame that was valid JSON but rejected by the caller, for
// example because it did not decode into the expected shape.
func (d *Decoder) Skip(err error) {
	d.dropped++
	if d.OnDrop != nil {
		d.OnDrop(d.data, err)
	}
}

func (d *Decoder) finish(err error) {
	d.done = true
	d.data = nil
	d.err = err
}
