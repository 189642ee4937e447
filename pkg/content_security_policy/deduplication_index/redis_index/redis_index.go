// Package redis_index shares the deduplication index between processes
// through Redis.
package redis_index

import (
	"context"
	"fmt"
	"time"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "csp:report:"
	DefaultTtl       = 24 * time.Hour
)

// Client is the subset of redis.UniversalClient used by the index.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type Index struct {
	Client    Client
	KeyPrefix string
	Ttl       time.Duration
}

type Option func(*Index)

func WithKeyPrefix(prefix string) Option {
	return func(index *Index) {
		index.KeyPrefix = prefix
	}
}

func WithTtl(ttl time.Duration) Option {
	return func(index *Index) {
		if ttl > 0 {
			index.Ttl = ttl
		}
	}
}

func New(client Client, options ...Option) *Index {
	index := &Index{Client: client, KeyPrefix: DefaultKeyPrefix, Ttl: DefaultTtl}
	for _, option := range options {
		if option != nil {
			option(index)
		}
	}

	return index
}

func (index *Index) InsertIfAbsent(ctx context.Context, digest string) (bool, error) {
	if index.Client == nil {
		return false, motmedelErrors.NewWithTrace(fmt.Errorf("%w: redis client", motmedelErrors.ErrZeroValue))
	}

	key := index.KeyPrefix + digest
	inserted, err := index.Client.SetNX(ctx, key, 1, index.Ttl).Result()
	if err != nil {
		return false, motmedelErrors.New(fmt.Errorf("redis set nx: %w", err), key)
	}

	return inserted, nil
}
