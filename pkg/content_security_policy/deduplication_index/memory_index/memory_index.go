package memory_index

import (
	"context"
	"sync"
	"time"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 10_000
	DefaultTtl  = 24 * time.Hour
)

// Index is a process-local digest set bounded in size and entry age. Evicted
// digests are forwarded again if reported again.
type Index struct {
	mutex sync.Mutex
	cache *expirable.LRU[string, struct{}]
	Size  int
	Ttl   time.Duration
}

type Option func(*Index)

func WithSize(size int) Option {
	return func(index *Index) {
		if size > 0 {
			index.Size = size
		}
	}
}

func WithTtl(ttl time.Duration) Option {
	return func(index *Index) {
		if ttl > 0 {
			index.Ttl = ttl
		}
	}
}

func New(options ...Option) *Index {
	index := &Index{Size: DefaultSize, Ttl: DefaultTtl}
	for _, option := range options {
		if option != nil {
			option(index)
		}
	}

	index.cache = expirable.NewLRU[string, struct{}](index.Size, nil, index.Ttl)
	return index
}

func (index *Index) InsertIfAbsent(ctx context.Context, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, motmedelErrors.New(err, digest)
	}

	index.mutex.Lock()
	defer index.mutex.Unlock()

	if index.cache.Contains(digest) {
		return false, nil
	}
	index.cache.Add(digest, struct{}{})

	return true, nil
}

func (index *Index) Len() int {
	return index.cache.Len()
}
