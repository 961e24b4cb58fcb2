// Package redis provides a Redis implementation of storage.RunStore.
//
// Each run is a JSON document under <prefix>run:<id>. Sorted sets scored
// by creation time index all runs and the runs of each model.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/llmclient/pkg/debug"
	"github.com/rhuss/llmclient/pkg/storage"
)

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "llmclient:"

// Config holds Redis connection settings.
type Config struct {
	// URL is the connection string, e.g. "redis://localhost:6379/0".
	URL string

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string

	// DialTimeout defaults to 5 seconds.
	DialTimeout time.Duration
}

// Store is a Redis-backed RunStore.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ storage.RunStore = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// record is the stored JSON form of a run.
type record struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	Format       string          `json:"format"`
	Stream       bool            `json:"stream"`
	Query        string          `json:"query"`
	Durations    []time.Duration `json:"durations_ns"`
	FirstContent []time.Duration `json:"first_content_ns,omitempty"`
	Output       string          `json:"output"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (s *Store) runKey(id string) string { return s.prefix + "run:" + id }

func (s *Store) indexKey() string { return s.prefix + "runs" }

func (s *Store) modelKey(model string) string { return s.prefix + "runs:model:" + model }

// SaveRun stores the run and indexes it. The document is written with
// SET NX so an existing ID is never overwritten.
func (s *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	data, err := json.Marshal(record{
		ID:           run.ID.String(),
		Model:        run.Model,
		Format:       run.Format,
		Stream:       run.Stream,
		Query:        run.Query,
		Durations:    run.Durations,
		FirstContent: run.FirstContent,
		Output:       run.Output,
		CreatedAt:    run.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	id := run.ID.String()
	ok, err := s.client.SetNX(ctx, s.runKey(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if !ok {
		return storage.ErrConflict
	}

	member := goredis.Z{Score: float64(run.CreatedAt.UnixNano()), Member: id}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZAdd(ctx, s.indexKey(), member)
		p.ZAdd(ctx, s.modelKey(run.Model), member)
		return nil
	})
	if err != nil {
		// EXEC does not roll back, so undo whatever was written. The
		// document must go or a retry with the same ID would conflict.
		if uerr := s.unsave(context.WithoutCancel(ctx), id, run.Model); uerr != nil {
			return fmt.Errorf("indexing run: %w", errors.Join(err, uerr))
		}
		return fmt.Errorf("indexing run: %w", err)
	}

	debug.Log("storage", "run saved", "backend", "redis", "id", id)
	return nil
}

func (s *Store) unsave(ctx context.Context, id, model string) error {
	_, err := s.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZRem(ctx, s.indexKey(), id)
		p.ZRem(ctx, s.modelKey(model), id)
		p.Del(ctx, s.runKey(id))
		return nil
	})
	return err
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	data, err := s.client.Get(ctx, s.runKey(id.String())).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return decode(data)
}

// ListRuns returns runs newest first. Runs with equal timestamps are
// ordered by ID.
func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) ([]*storage.Run, error) {
	key := s.indexKey()
	if opts.Model != "" {
		key = s.modelKey(opts.Model)
	}

	ids, err := s.newest(ctx, key, opts.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	if len(ids) == 0 {
		return []*storage.Run{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	runs := make([]*storage.Run, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Indexed but deleted out of band.
			debug.Log("storage", "dangling run index entry", "id", ids[i])
			continue
		}
		run, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// newest returns up to limit IDs from the index, newest first with ties in
// ascending ID order. Sorted sets break score ties by descending member in
// reverse ranges, so the tie group cut by the limit is refetched whole.
func (s *Store) newest(ctx context.Context, key string, limit int) ([]string, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	if len(zs) == limit {
		last := zs[len(zs)-1].Score
		bound := strconv.FormatFloat(last, 'f', -1, 64)
		tied, err := s.client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, err
		}
		zs = slices.DeleteFunc(zs, func(z goredis.Z) bool { return z.Score == last })
		for _, m := range tied {
			zs = append(zs, goredis.Z{Score: last, Member: m})
		}
	}

	slices.SortStableFunc(zs, func(a, b goredis.Z) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Member), fmt.Sprint(b.Member))
	})
	if len(zs) > limit {
		zs = zs[:limit]
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = fmt.Sprint(z.Member)
	}
	return ids, nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client's connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(data []byte) (*storage.Run, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("decoding run id: %w", err)
	}
	return &storage.Run{
		ID:           id,
		Model:        r.Model,
		Format:       r.Format,
		Stream:       r.Stream,
		Query:        r.Query,
		Durations:    r.Durations,
		FirstContent: r.FirstContent,
		Output:       r.Output,
		CreatedAt:    r.CreatedAt,
	}, nil
}
