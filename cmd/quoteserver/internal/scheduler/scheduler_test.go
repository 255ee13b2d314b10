package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/scheduler"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/testutils"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/models"
)

// stoppingClock cancels the run after a fixed number of sleeps
type stoppingClock struct {
	testutils.MockClock
	limit  int
	sleeps int
	cancel context.CancelFunc
}

func (c *stoppingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.Advance(d)
	c.sleeps++
	if c.sleeps >= c.limit {
		c.cancel()
	}
	return ctx.Err()
}

func newClock(limit int) (*stoppingClock, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &stoppingClock{limit: limit, cancel: cancel}
	c.CurrentTime = time.Unix(1_700_000_000, 0)
	return c, ctx
}

func TestScheduler_FiresAndPublishes(t *testing.T) {
	clock, ctx := newClock(3)
	store := testutils.NewTestStore(t, []string{"a", "b"}, 60, 1, clock)
	sink := &testutils.MockSink{}

	s := scheduler.NewScheduler(zap.NewNop(), store, clock, time.Second, sink)
	s.Run(ctx)

	if st := store.Stats(); st.Sequence != 3 {
		t.Errorf("Expected 3 columns written, got %d", st.Sequence)
	}

	sink.Mu.Lock()
	defer sink.Mu.Unlock()
	if len(sink.Batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(sink.Batches))
	}
	last := sink.Batches[2]
	if last.Len() != 1 || last.SeqIDs[0] != 3 {
		t.Errorf("Expected single column with seq 3, got %+v", last)
	}
	if last.Columns[0][0] != 2 {
		t.Errorf("Expected quote 2 in third column, got %d", last.Columns[0][0])
	}
}

func TestScheduler_CatchesUpSlowFirings(t *testing.T) {
	clock, ctx := newClock(2)
	store := testutils.NewTestStore(t, []string{"a"}, 60, 1, clock)
	sink := &testutils.MockSink{}

	// firing every 3s against a 1s tick
	scheduler.NewScheduler(zap.NewNop(), store, clock, 3*time.Second, sink).Run(ctx)

	if st := store.Stats(); st.Sequence != 4 {
		t.Errorf("Expected 1 + 3 columns, got %d", st.Sequence)
	}
	if n := sink.Batches[1].Len(); n != 3 {
		t.Errorf("Expected second batch to carry 3 columns, got %d", n)
	}
}

func TestScheduler_SurvivesPanics(t *testing.T) {
	clock, ctx := newClock(3)
	adv := &testutils.MockAdvancer{PanicOnCall: true}
	sink := &testutils.MockSink{}

	scheduler.NewScheduler(zap.NewNop(), adv, clock, time.Second, sink).Run(ctx)

	if adv.CallCount() != 3 {
		t.Errorf("Loop should keep firing after a panic, fired %d times", adv.CallCount())
	}
	if len(sink.Batches) != 0 {
		t.Errorf("Nothing should be published after a failed firing")
	}
}

func TestScheduler_SurvivesErrors(t *testing.T) {
	clock, ctx := newClock(2)
	adv := &testutils.MockAdvancer{Err: tickstore.ErrClockSkew}

	scheduler.NewScheduler(zap.NewNop(), adv, clock, time.Second).Run(ctx)

	if adv.CallCount() != 2 {
		t.Errorf("Expected 2 firings, got %d", adv.CallCount())
	}
}

func TestScheduler_SinkFailureDoesNotBlockOthers(t *testing.T) {
	clock, ctx := newClock(2)
	adv := &testutils.MockAdvancer{
		Written: 1,
		RecentBatch: tickstore.Batch{
			Tickers:    []string{"a"},
			Columns:    [][]models.Quote{{7}},
			Timestamps: []int64{1},
			SeqIDs:     []int64{1},
		},
	}
	failing := &testutils.MockSink{ShouldFail: true}
	healthy := &testutils.MockSink{}

	scheduler.NewScheduler(zap.NewNop(), adv, clock, time.Second, failing, healthy).Run(ctx)

	if len(healthy.Batches) != 2 {
		t.Errorf("Healthy sink should get every batch, got %d", len(healthy.Batches))
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adv := &testutils.MockAdvancer{Err: errors.New("unused")}

	scheduler.NewScheduler(zap.NewNop(), adv, &testutils.MockClock{}, time.Second).Run(ctx)

	if adv.CallCount() != 0 {
		t.Errorf("Cancelled scheduler should not fire, fired %d times", adv.CallCount())
	}
}

func TestScheduler_CancelInterruptsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adv := &testutils.MockAdvancer{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.NewScheduler(zap.NewNop(), adv, scheduler.RealClock{}, time.Hour).Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for adv.CallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if adv.CallCount() != 1 {
		t.Fatalf("Expected one firing before the long sleep, got %d", adv.CallCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Scheduler kept sleeping after cancel")
	}
}

func TestRealClock_SleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (scheduler.RealClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := (scheduler.RealClock{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected a completed sleep, got %v", err)
	}
}
