// Package deduplication_index defines the set of report digests that have
// already been forwarded or logged.
package deduplication_index

import "context"

// Index is safe for concurrent use. InsertIfAbsent is atomic: for concurrent
// calls with the same digest, exactly one observes inserted == true.
type Index interface {
	InsertIfAbsent(ctx context.Context, digest string) (bool, error)
}

// IndexFunc adapts a function to Index.
type IndexFunc func(ctx context.Context, digest string) (bool, error)

func (f IndexFunc) InsertIfAbsent(ctx context.Context, digest string) (bool, error) {
	return f(ctx, digest)
}
