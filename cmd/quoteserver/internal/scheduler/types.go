package scheduler

import (
	"context"
	"time"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
}

type Advancer interface {
	AdvanceAndFill(now int64) (int, error)
	Recent(n int) tickstore.Batch
}

// Sink receives every batch of freshly written columns
type Sink interface {
	Publish(ctx context.Context, b tickstore.Batch) error
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
