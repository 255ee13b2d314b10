package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/trace"
)

type Scheduler struct {
	logger   *zap.Logger
	store    Advancer
	clock    Clock
	interval time.Duration
	sinks    []Sink
}

func NewScheduler(logger *zap.Logger, store Advancer, clock Clock, interval time.Duration, sinks ...Sink) *Scheduler {
	return &Scheduler{
		logger:   logger,
		store:    store,
		clock:    clock,
		interval: interval,
		sinks:    sinks,
	}
}

// Run fires until ctx is cancelled. A failing firing never stops the loop,
// the next one catches up on whatever was missed.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler Started", zap.Duration("interval", s.interval), zap.Int("sinks", len(s.sinks)))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler Stopped")
			return
		default:
			s.tick(ctx)
			if err := s.clock.Sleep(ctx, s.interval); err != nil {
				s.logger.Info("Scheduler Stopped")
				return
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "scheduler.Tick")
	defer span.End()

	written, err := s.fire()
	if err != nil {
		trace.RecordError(span, err)
		s.logger.Error("Tick Failed", zap.Error(err))
		return
	}
	span.SetAttributes(attribute.Int("columns", written))
	if written > 0 {
		s.publish(ctx, written)
	}
}

func (s *Scheduler) fire() (written int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during tick: %v", r)
		}
	}()
	return s.store.AdvanceAndFill(s.clock.Now().Unix())
}

func (s *Scheduler) publish(ctx context.Context, written int) {
	batch := s.store.Recent(written)
	if written > batch.Len() {
		s.logger.Warn("Catch-up exceeded retention, publishing what is left",
			zap.Int("written", written), zap.Int("published", batch.Len()))
	}

	for _, sink := range s.sinks {
		if err := s.safePublish(ctx, sink, batch); err != nil {
			s.logger.Error("Sink Publish Error", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
	}
}

func (s *Scheduler) safePublish(ctx context.Context, sink Sink, batch tickstore.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sink: %v", r)
		}
	}()
	return sink.Publish(ctx, batch)
}
