// Package prompt assembles chat messages for retrieval-augmented
// generation from a user query and a set of retrieved passages.
//
// Retrieval itself (embedding the query and searching a vector index) is
// done by an external system that implements Retriever. This package ships
// two simple implementations for benchmarking without such a system: a
// fixed list of pre-retrieved passages, and a lexical ranker over a chunk
// file.
package prompt

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"
)

// Passage is one retrieved text chunk. Score is retriever specific and
// only meaningful relative to other passages of the same call.
type Passage struct {
	Text  string
	Score float64
}

// Retriever returns up to k passages relevant to query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

var errNegativeK = errors.New("k must not be negative")

// loadChunks reads a JSON array of strings, the format an indexer writes
// next to its vector index.
func loadChunks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parsing %s: expected a JSON array of strings: %w", path, err)
	}
	return chunks, nil
}

// PassageFile serves passages that were retrieved ahead of time. The query
// is ignored and passages are returned in file order.
type PassageFile struct {
	passages []string
}

// LoadPassageFile reads a JSON array of passage strings.
func LoadPassageFile(path string) (*PassageFile, error) {
	chunks, err := loadChunks(path)
	if err != nil {
		return nil, err
	}
	return &PassageFile{passages: chunks}, nil
}

// NewPassageFile wraps an in-memory list of passages.
func NewPassageFile(passages ...string) *PassageFile {
	return &PassageFile{passages: passages}
}

// Len returns the number of passages available.
func (f *PassageFile) Len() int {
	return len(f.passages)
}

// Retrieve returns the first k passages.
func (f *PassageFile) Retrieve(_ context.Context, _ string, k int) ([]Passage, error) {
	if k < 0 {
		return nil, errNegativeK
	}
	k = min(k, len(f.passages))
	out := make([]Passage, k)
	for i := range k {
		out[i] = Passage{Text: f.passages[i]}
	}
	return out, nil
}

// Lexical ranks chunks by how many distinct query terms they contain. It
// is a stand-in for embedding search when none is available.
type Lexical struct {
	chunks []string
	terms  [][]string
}

// LoadLexical reads a chunk file and prepares it for ranking.
func LoadLexical(path string) (*Lexical, error) {
	chunks, err := loadChunks(path)
	if err != nil {
		return nil, err
	}
	return NewLexical(chunks), nil
}

// NewLexical prepares chunks for ranking.
func NewLexical(chunks []string) *Lexical {
	l := &Lexical{chunks: chunks, terms: make([][]string, len(chunks))}
	for i, c := range chunks {
		l.terms[i] = tokenize(c)
	}
	return l
}

// Retrieve returns the k best matching chunks. Ties keep chunk order and
// chunks matching no term are never returned.
func (l *Lexical) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k < 0 {
		return nil, errNegativeK
	}
	want := make(map[string]bool)
	for _, t := range tokenize(query) {
		want[t] = true
	}

	type hit struct {
		idx   int
		score int
	}
	var hits []hit
	for i, terms := range l.terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, t := range terms {
			if want[t] {
				seen[t] = true
			}
		}
		if len(seen) > 0 {
			hits = append(hits, hit{idx: i, score: len(seen)})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(hits))
	out := make([]Passage, k)
	for i := range k {
		out[i] = Passage{
			Text:  l.chunks[hits[i].idx],
			Score: float64(hits[i].score) / float64(len(want)),
		}
	}
	return out, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
