package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"bahon/internal/config"
)

// NewRedisClient creates the client backing boarding records, rider locks,
// dedupe keys and caches. Commands are recorded as datastore segments when
// nrApp is set and a transaction is in the context.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(nrRedisHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// nrRedisHook implements redis.Hook for New Relic instrumentation.
type nrRedisHook struct{}

func (nrRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (nrRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		txn := newrelic.FromContext(ctx)
		if txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  cmd.Name(),
				Collection: keyspace(cmd),
			}
			defer segment.End()
		}
		return next(ctx, cmd)
	}
}

func (nrRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		txn := newrelic.FromContext(ctx)
		if txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  "pipeline",
				Collection: "redis",
			}
			defer segment.End()
		}
		return next(ctx, cmds)
	}
}

// keyspace returns the key prefix of a command, e.g. "boarding" for
// "boarding:rider-1", so segments group by store rather than by key.
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok {
		return "redis"
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
