package report_forwarder

import (
	"context"
	"errors"
	"testing"
)

func TestMulti(t *testing.T) {
	t.Parallel()

	var received [][]byte
	recording := ForwarderFunc(func(_ context.Context, report []byte) error {
		received = append(received, report)
		return nil
	})

	forwardErr := errors.New("unreachable")
	failing := ForwarderFunc(func(context.Context, []byte) error {
		return forwardErr
	})

	err := Multi{recording, nil, failing, recording}.Forward(context.Background(), []byte(`{}`))
	if !errors.Is(err, forwardErr) {
		t.Fatalf("expected the joined error to contain the forward error, got %v", err)
	}
	if len(received) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(received))
	}

	if err := (Multi{recording}).Forward(context.Background(), []byte(`{}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
