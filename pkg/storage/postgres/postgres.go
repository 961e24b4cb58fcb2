// Package postgres provides a PostgreSQL implementation of storage.RunStore.
// It uses pgx/v5 for connection pooling and JSONB columns for per-call
// timings.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/storage"
)

// Store is a PostgreSQL-backed RunStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRun inserts a run.
func (s *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	durations, err := json.Marshal(toSeconds(run.Durations))
	if err != nil {
		return fmt.Errorf("marshaling durations: %w", err)
	}
	firstContent, err := json.Marshal(toSeconds(run.FirstContent))
	if err != nil {
		return fmt.Errorf("marshaling first content timings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO bench_runs (
			id, model, prompt_format, stream, query,
			durations, first_content, output, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		run.ID.String(), run.Model, run.Format, run.Stream, run.Query,
		durations, firstContent, run.Output, run.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	debug.Log("storage", "saved run", "id", run.ID, "model", run.Model, "calls", len(run.Durations))
	return nil
}

const selectRun = `
	SELECT id, model, prompt_format, stream, query,
	       durations, first_content, output, created_at
	FROM bench_runs`

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	row := s.pool.QueryRow(ctx, selectRun+" WHERE id = $1", id.String())
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally for one model.
func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) ([]*storage.Run, error) {
	query := selectRun
	args := []any{}
	if opts.Model != "" {
		query += " WHERE model = $1"
		args = append(args, opts.Model)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT %d", opts.EffectiveLimit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []*storage.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRun(row pgx.Row) (*storage.Run, error) {
	var (
		run                     storage.Run
		id                      string
		durations, firstContent []byte
	)
	if err := row.Scan(
		&id, &run.Model, &run.Format, &run.Stream, &run.Query,
		&durations, &firstContent, &run.Output, &run.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing id: %w", err)
	}
	if run.Durations, err = fromSeconds(durations); err != nil {
		return nil, fmt.Errorf("unmarshaling durations: %w", err)
	}
	if run.FirstContent, err = fromSeconds(firstContent); err != nil {
		return nil, fmt.Errorf("unmarshaling first content timings: %w", err)
	}
	return &run, nil
}

// Timings are stored as JSON arrays of seconds.
func toSeconds(ds []time.Duration) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.Seconds()
	}
	return out
}

func fromSeconds(data []byte) ([]time.Duration, error) {
	var secs []float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return nil, err
	}
	if len(secs) == 0 {
		return nil, nil
	}
	out := make([]time.Duration, len(secs))
	for i, s := range secs {
		out[i] = time.Duration(math.Round(s * float64(time.Second)))
	}
	return out, nil
}

// isDuplicateKey reports a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
