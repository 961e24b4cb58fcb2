package client

import (
	"iter"
	"log/slog"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/observability"
	"github.com/rhuss/llmclient/pkg/sse"
	"github.com/rhuss/llmclient/pkg/transport"
)

// Stream is a single-pass sequence of chunks read from an SSE response.
// Iteration happens on the caller's goroutine; there is no background
// reader. A Stream is not safe for concurrent use.
//
// The underlying connection is released when the stream ends, when it
// fails, or when Close is called, whichever comes first.
type Stream struct {
	resp  *transport.Response
	dec   *sse.Decoder
	model string

	current api.Chunk
	err     error
	closed  bool
	chunks  int
}

func newStream(resp *transport.Response, model string) *Stream {
	s := &Stream{resp: resp, model: model}
	s.dec = sse.NewDecoder(resp.Reader())
	s.dec.OnDrop = s.drop
	return s
}

func (s *Stream) drop(payload []byte, err error) {
	observability.StreamDroppedFramesTotal.Inc()
	slog.Warn("skipping malformed stream frame",
		"model", s.model,
		"error", err,
		"payload", debug.Truncate(string(payload), 120),
	)
}

// Next advances to the next chunk, blocking until it arrives. It returns
// false when the stream is exhausted, has failed, or was closed.
func (s *Stream) Next() bool {
	if s.closed {
		return false
	}

	for s.dec.Next() {
		chunk, err := api.DecodeChunk(s.dec.Data())
		if err != nil {
			s.dec.Skip(err)
			continue
		}
		s.current = *chunk
		s.chunks++
		observability.StreamChunksTotal.WithLabelValues(s.model).Inc()
		return true
	}

	s.err = s.dec.Err()
	debug.Log("streaming", "stream ended", "model", s.model, "chunks", s.chunks, "dropped", s.dec.Dropped(), "error", s.err)
	s.Close()
	return false
}

// Current returns the chunk produced by the last successful Next.
func (s *Stream) Current() api.Chunk {
	return s.current
}

// Err returns the error that ended the stream. It is nil when the stream
// ended with [DONE] or a clean EOF.
func (s *Stream) Err() error {
	return s.err
}

// Dropped returns how many frames were skipped as malformed so far.
func (s *Stream) Dropped() int {
	return s.dec.Dropped()
}

// Close releases the connection. It is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.current = api.Chunk{}
	return s.resp.Close()
}

// All returns an iterator over the remaining chunks. A failure is yielded
// once as the final element with a zero Chunk. Breaking out of the loop
// closes the stream.
func (s *Stream) All() iter.Seq2[api.Chunk, error] {
	return func(yield func(api.Chunk, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Current(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(api.Chunk{}, err)
		}
	}
}

// Accumulate drains the stream and rebuilds the equivalent buffered
// completion. Chunks received before a failure are kept in the returned
// completion alongside the error.
func (s *Stream) Accumulate() (*api.Completion, error) {
	var acc api.Accumulator
	for chunk, err := range s.All() {
		if err != nil {
			return acc.Completion(), err
		}
		acc.Add(&chunk)
	}
	return acc.Completion(), nil
}
