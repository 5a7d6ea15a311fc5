package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// JobKeyPrefix prefixes the JSON record of a job.
	JobKeyPrefix = "insights:job:"
	// cancelSuffix marks the cancel flag key of a job. The flag is a key of
	// its own so a cancel never races a record update.
	cancelSuffix = ":cancel"
)

// RedisOptions configures the Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis is a Store shared between processes through a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "jobstore.redis").Logger(),
	}, nil
}

func jobKey(id string) string    { return JobKeyPrefix + id }
func cancelKey(id string) string { return JobKeyPrefix + id + cancelSuffix }

func (r *Redis) Put(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, jobKey(rec.ID), data, r.ttl)
	if rec.Cancelled {
		pipe.Set(ctx, cancelKey(rec.ID), "1", r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Get(ctx context.Context, id string) (Record, error) {
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, jobKey(id))
	flag := pipe.Exists(ctx, cancelKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Record{}, err
	}

	data, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, &NotFoundError{JobID: id}
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	if flag.Val() > 0 {
		rec.Cancelled = true
	}
	return rec, nil
}

func (r *Redis) Cancel(ctx context.Context, id string) error {
	n, err := r.client.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{JobID: id}
	}
	if err := r.client.Set(ctx, cancelKey(id), "1", r.ttl).Err(); err != nil {
		return err
	}
	r.logger.Info().Str("job_id", id).Msg("Cancel flag raised")
	return nil
}

func (r *Redis) Cancelled(ctx context.Context, id string) (bool, error) {
	pipe := r.client.Pipeline()
	job := pipe.Exists(ctx, jobKey(id))
	flag := pipe.Exists(ctx, cancelKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if job.Val() == 0 {
		return false, &NotFoundError{JobID: id}
	}
	return flag.Val() > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
