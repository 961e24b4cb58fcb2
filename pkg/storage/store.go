package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run is the recorded outcome of one benchmark invocation: every timed
// completion call against one model with one prompt.
type Run struct {
	ID     uuid.UUID
	Model  string
	Format string
	Stream bool
	Query  string

	// Durations holds the wall time of each call, in run order.
	Durations []time.Duration

	// FirstContent holds the time to the first non-empty delta of each
	// call. It is empty for buffered runs.
	FirstContent []time.Duration

	// Output is the text of the first call.
	Output string

	CreatedAt time.Time
}

// ListOptions filters and bounds ListRuns.
type ListOptions struct {
	// Model restricts results to one model when set.
	Model string

	// Limit defaults to DefaultListLimit and is capped at MaxListLimit.
	Limit int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// EffectiveLimit applies the default and the cap to o.Limit.
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	}
	return o.Limit
}

// RunStore persists benchmark runs.
type RunStore interface {
	// SaveRun stores a new run. It returns ErrConflict if the ID is taken.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given ID or ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListRuns returns runs newest first. Runs with equal CreatedAt are
	// ordered by ascending ID in every backend.
	ListRuns(ctx context.Context, opts ListOptions) ([]*Run, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
