package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisJournal implements RunJournal using Redis.
// Each run is a JSON string; a sorted set ordered by start time indexes them.
type RedisJournal struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisJournal.
type RedisOption func(*RedisJournal)

// WithTTL sets the expiration for stored runs.
func WithTTL(ttl time.Duration) RedisOption {
	return func(j *RedisJournal) {
		j.ttl = ttl
	}
}

// WithPrefix sets the key prefix for stored runs.
func WithPrefix(prefix string) RedisOption {
	return func(j *RedisJournal) {
		j.prefix = prefix
	}
}

// OpenRedis connects to the Redis server named by a redis:// URL.
func OpenRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisJournal, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := backend.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewRedisFromClient(client, opts...), nil
}

// NewRedisFromClient creates a journal from an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *RedisJournal {
	journal := &RedisJournal{
		client: client,
		prefix: "sandboxagent:run:",
	}
	for _, opt := range opts {
		opt(journal)
	}
	return journal
}

func (j *RedisJournal) key(id string) string {
	return j.prefix + id
}

func (j *RedisJournal) indexKey() string {
	return j.prefix + "index"
}

// Record stores a run and indexes it by start time.
func (j *RedisJournal) Record(ctx context.Context, run RunRecord) error {
	data, err := json.Marshal(run.normalize())
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.Set(ctx, j.key(run.ID), data, j.ttl)
	pipe.ZAdd(ctx, j.indexKey(), backend.Z{
		Score:  float64(run.StartedAt.UnixMilli()),
		Member: run.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves one run.
func (j *RedisJournal) Get(ctx context.Context, id string) (RunRecord, error) {
	val, err := j.client.Get(ctx, j.key(id)).Bytes()
	if errors.Is(err, backend.Nil) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var run RunRecord
	if err := json.Unmarshal(val, &run); err != nil {
		return RunRecord{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return run.normalize(), nil
}

// List returns runs most recently started first.
// Index entries whose run has expired are pruned and the page is refilled
// from older entries, so a short page means the index is exhausted.
func (j *RedisJournal) List(ctx context.Context, limit int) ([]RunRecord, error) {
	runs := []RunRecord{}
	for {
		start := int64(len(runs))
		stop := int64(-1)
		if limit > 0 {
			stop = int64(limit - 1)
		}
		ids, err := j.client.ZRevRange(ctx, j.indexKey(), start, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		if len(ids) == 0 {
			return runs, nil
		}

		live, expired, err := j.load(ctx, ids)
		if err != nil {
			return nil, err
		}
		runs = append(runs, live...)
		if len(expired) == 0 {
			return runs, nil
		}
		// Pruning shifts older entries into the range just read.
		if err := j.client.ZRem(ctx, j.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired runs: %w", err)
		}
	}
}

// load fetches the runs for ids and reports which ids have expired.
func (j *RedisJournal) load(ctx context.Context, ids []string) ([]RunRecord, []any, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = j.key(id)
	}
	values, err := j.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load runs: %w", err)
	}

	runs := make([]RunRecord, 0, len(values))
	var expired []any
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var run RunRecord
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal run %s: %w", ids[i], err)
		}
		runs = append(runs, run.normalize())
	}
	return runs, expired, nil
}

// Close closes the redis client.
func (j *RedisJournal) Close() error {
	return j.client.Close()
}

var _ RunJournal = (*RedisJournal)(nil)
