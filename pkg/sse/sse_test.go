package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

// collect drains a decoder and returns the payloads it yielded.
func collect(t *testing.T, d *Decoder) []string {
	t.Helper()
	var out []string
	for d.Next() {
		out = append(out, string(d.Data()))
	}
	return out
}

func TestDecoder_FramesThenDone(t *testing.T) {
	input := "data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: {\"n\":3}\n\ndata: [DONE]\n\ndata: {\"n\":4}\n\n"
	d := NewDecoder(strings.NewReader(input))

	got := collect(t, d)
	want := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	if len(got) != len(want) {
		t.Fatalf("got %d payloads %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("payload %d = %q, want %q", i, got[i], want[i])
		}
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if d.Next() {
		t.Error("Next() after [DONE] returned true")
	}
}

func TestDecoder_MalformedFrameSkipped(t *testing.T) {
	input := "data: {bad json}\n\ndata: {\"id\":\"x\",\"choices\":[],\"created\":1,\"model\":\"m\"}\n\ndata: [DONE]\n\n"

	var dropped []string
	d := NewDecoder(strings.NewReader(input))
	d.OnDrop = func(payload []byte, err error) {
		dropped = append(dropped, string(payload))
	}

	got := collect(t, d)
	if len(got) != 1 || !strings.Contains(got[0], `"id":"x"`) {
		t.Fatalf("payloads = %q, want the single well-formed frame", got)
	}
	if d.Err() != nil {
		t.Errorf("Err() = %v, want nil", d.Err())
	}
	if d.Dropped() != 1 || len(dropped) != 1 || dropped[0] != "{bad json}" {
		t.Errorf("Dropped() = %d, hook saw %q", d.Dropped(), dropped)
	}
}

func TestDecoder_EOFWithoutDone(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"a\":1}\n\ndata: {\"a\":2}\n"))
	got := collect(t, d)
	if len(got) != 2 {
		t.Fatalf("got %d payloads, want 2", len(got))
	}
	if d.Err() != nil {
		t.Errorf("Err() = %v, want nil for a clean close", d.Err())
	}
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"event: message",
		"id: 7",
		"retry: 1000",
		"data:{\"nospace\":true}",
		"   ",
		"data: {\"ok\":true}   \r",
		"",
		"data: [DONE]",
	}, "\n")

	got := collect(t, NewDecoder(strings.NewReader(input)))
	if len(got) != 1 || got[0] != `{"ok":true}` {
		t.Fatalf("payloads = %q, want only the data frame with trailing whitespace trimmed", got)
	}
}

func TestDecoder_ReadErrorSurfaced(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"a\":1}\n\n"), &failingReader{err: boom})

	d := NewDecoder(r)
	got := collect(t, d)
	if len(got) != 1 {
		t.Fatalf("got %d payloads before the failure, want 1", len(got))
	}
	if !errors.Is(d.Err(), boom) {
		t.Errorf("Err() = %v, want %v", d.Err(), boom)
	}
}

func TestDecoder_LineTooLong(t *testing.T) {
	huge := "data: \"" + strings.Repeat("x", MaxLineSize) + "\"\n\n"
	d := NewDecoder(strings.NewReader(huge))
	if d.Next() {
		t.Fatal("Next() = true for an oversized line")
	}
	if !errors.Is(d.Err(), bufio.ErrTooLong) {
		t.Errorf("Err() = %v, want bufio.ErrTooLong", d.Err())
	}
}

func TestDecoder_SkipCountsAsDropped(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: 42\n\n"))
	var seen string
	d.OnDrop = func(payload []byte, err error) { seen = string(payload) }

	if !d.Next() {
		t.Fatal("Next() = false, want the numeric payload")
	}
	d.Skip(errors.New("not an object"))
	if d.Dropped() != 1 || seen != "42" {
		t.Errorf("Dropped() = %d, hook saw %q", d.Dropped(), seen)
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)
	enc := NewEncoder(rec)

	if err := enc.Comment("keep-alive"); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if err := enc.WriteRaw([]byte("{broken")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Done(); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !rec.Flushed {
		t.Error("encoder did not flush")
	}

	d := NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	got := collect(t, d)
	if len(got) != 1 || got[0] != `{"n":1}` {
		t.Errorf("payloads = %q", got)
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}
}

type failingReader struct{ err error }

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }
