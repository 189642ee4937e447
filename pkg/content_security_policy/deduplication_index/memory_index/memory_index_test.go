package memory_index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInsertIfAbsent(t *testing.T) {
	t.Parallel()

	index := New()
	ctx := context.Background()

	inserted, err := index.InsertIfAbsent(ctx, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Fatal("expected the first insert to succeed")
	}

	inserted, err = index.InsertIfAbsent(ctx, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted {
		t.Fatal("expected the second insert to report a duplicate")
	}
}

func TestConcurrentInsert(t *testing.T) {
	t.Parallel()

	index := New()
	var insertions atomic.Int64
	var waitGroup sync.WaitGroup

	for range 64 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			inserted, err := index.InsertIfAbsent(context.Background(), "same")
			if err == nil && inserted {
				insertions.Add(1)
			}
		}()
	}
	waitGroup.Wait()

	if got := insertions.Load(); got != 1 {
		t.Errorf("expected exactly one insertion, got %d", got)
	}
}

func TestSizeBound(t *testing.T) {
	t.Parallel()

	index := New(WithSize(2))
	ctx := context.Background()

	for i := range 3 {
		if _, err := index.InsertIfAbsent(ctx, fmt.Sprintf("digest-%d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if index.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", index.Len())
	}

	inserted, err := index.InsertIfAbsent(ctx, "digest-0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Error("expected the evicted digest to be insertable again")
	}
}

func TestTtl(t *testing.T) {
	t.Parallel()

	index := New(WithTtl(20 * time.Millisecond))
	ctx := context.Background()

	if _, err := index.InsertIfAbsent(ctx, "digest"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	inserted, err := index.InsertIfAbsent(ctx, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Error("expected the expired digest to be insertable again")
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().InsertIfAbsent(ctx, "digest")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	index := New(WithSize(0), WithTtl(-1))
	if index.Size != DefaultSize || index.Ttl != DefaultTtl {
		t.Errorf("expected defaults, got %d and %s", index.Size, index.Ttl)
	}
}
