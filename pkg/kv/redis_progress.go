package kv

import (
	"context"
	"strconv"
	"strings"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const scanCount = 10000

// RedisProgress keeps the addressed-node checkpoint in redis as key -> 1.
type RedisProgress struct {
	client *redis.Client
	prefix string
}

func NewRedisProgress(client *redis.Client, prefix string) *RedisProgress {
	return &RedisProgress{client: client, prefix: prefix}
}

func (p *RedisProgress) key(nodeID int64) string {
	return p.prefix + strconv.FormatInt(nodeID, 10)
}

func (p *RedisProgress) MarkAddressed(ctx context.Context, nodeID int64) error {
	if err := p.client.Set(ctx, p.key(nodeID), 1, 0).Err(); err != nil {
		return errs.Transient(err, "mark %d addressed", nodeID)
	}
	return nil
}

func (p *RedisProgress) Addressed(ctx context.Context) (datastructure.IntersectionSet, error) {
	set := datastructure.NewIntersectionSet()
	err := p.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			id, err := strconv.ParseInt(strings.TrimPrefix(k, p.prefix), 10, 64)
			if err != nil {
				continue
			}
			set[id] = struct{}{}
		}
		return nil
	})
	return set, err
}

func (p *RedisProgress) Clear(ctx context.Context) error {
	return p.scan(ctx, func(keys []string) error {
		if len(keys) == 0 {
			return nil
		}
		if err := p.client.Del(ctx, keys...).Err(); err != nil {
			return errs.Transient(err, "delete %d checkpoint keys", len(keys))
		}
		return nil
	})
}

func (p *RedisProgress) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, p.prefix+"*", scanCount).Result()
		if err != nil {
			return errs.Transient(err, "scan checkpoint keys")
		}
		if err := fn(keys); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
