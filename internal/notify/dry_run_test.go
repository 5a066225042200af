package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) Notify(context.Context, Report) error {
	n.calls++
	return nil
}

func TestDryRunNotifierSuppressesDelivery(t *testing.T) {
	inner := &countingNotifier{}
	dryRun := NewDryRunNotifier(zerolog.Nop(), inner)

	if err := dryRun.Notify(context.Background(), makeReport(1, 1)); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("expected no notifier calls, got %d", inner.calls)
	}
}
