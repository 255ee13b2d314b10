package tickstore

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fertilis/quote-generator/pkg/models"
)

// Store keeps the most recent quotes of every ticker in a circular buffer of columns.
// One producer advances it, any number of readers take snapshots concurrently.
type Store struct {
	mu sync.RWMutex

	tickers  []string
	interval time.Duration
	initial  models.Quote
	gen      Generator
	clock    Clock

	capacity int
	buf      []models.Quote // column-major: column c is buf[c*len(tickers) : (c+1)*len(tickers)]

	cursor    int
	wrapped   bool
	written   bool
	lastWrite int64 // unix seconds
	sequence  int64
}

func New(cfg Config, gen Generator, clock Clock) (*Store, error) {
	if len(cfg.Tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInvalidConfig)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval %s", ErrInvalidConfig, cfg.TickInterval)
	}
	capacity := int(cfg.Retention / cfg.TickInterval)
	if capacity < 1 {
		return nil, fmt.Errorf("%w: retention %s shorter than tick interval %s", ErrInvalidConfig, cfg.Retention, cfg.TickInterval)
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: nil generator", ErrInvalidConfig)
	}
	if clock == nil {
		clock = RealClock{}
	}

	tickers := make([]string, len(cfg.Tickers))
	copy(tickers, cfg.Tickers)

	return &Store{
		tickers:  tickers,
		interval: cfg.TickInterval,
		initial:  cfg.InitialQuote,
		gen:      gen,
		clock:    clock,
		capacity: capacity,
		buf:      make([]models.Quote, capacity*len(tickers)),
	}, nil
}

func (s *Store) Tickers() []string           { return s.tickers }
func (s *Store) Capacity() int               { return s.capacity }
func (s *Store) TickInterval() time.Duration { return s.interval }

// AdvanceAndFill writes one column for every full tick interval elapsed since the
// previous write and returns how many were written. The first call writes exactly
// one column holding the initial quote.
func (s *Store) AdvanceAndFill(now int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	missed := 1
	if s.written {
		if now < s.lastWrite {
			return 0, fmt.Errorf("%w: now %d, last write %d", ErrClockSkew, now, s.lastWrite)
		}
		missed = s.ticksIn(secondsBetween(s.lastWrite, now))
	}

	for i := 0; i < missed; i++ {
		s.writeColumn()
	}
	s.lastWrite = now
	s.written = true
	return missed, nil
}

// writeColumn fills the column under the cursor and advances it. Caller holds the write lock.
func (s *Store) writeColumn() {
	col := s.column(s.cursor)
	if s.cursor == 0 && !s.wrapped {
		for i := range col {
			col[i] = s.initial
		}
	} else {
		prevIdx := s.cursor - 1
		if prevIdx < 0 {
			prevIdx = s.capacity - 1
		}
		prev := s.column(prevIdx)
		for i := range col {
			col[i] = s.gen.Next(prev[i])
		}
	}

	if s.cursor == s.capacity-1 {
		s.wrapped = true
	}
	s.cursor = (s.cursor + 1) % s.capacity
	s.sequence++
}

// SnapshotSince returns the columns covering the time between ts and now.
// Requests reaching further back than what is retained are truncated.
func (s *Store) SnapshotSince(ts int64) Snapshot {
	now := s.clock.Now().Unix()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.written {
		return Snapshot{Columns: [][]models.Quote{}, ResyncTimestamp: ts}
	}

	n := min(s.ticksIn(secondsBetween(ts, now)), s.available())
	return s.snapshot(n)
}

// SnapshotFromIndex returns the columns written from buffer position idx up to the cursor.
func (s *Store) SnapshotFromIndex(idx int) (Snapshot, error) {
	if idx < 0 || idx >= s.capacity {
		return Snapshot{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, s.capacity)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var requested int
	if idx <= s.cursor {
		requested = s.cursor - idx
	} else {
		requested = s.capacity - idx + s.cursor
	}
	return s.snapshot(min(requested, s.available())), nil
}

// ResolvePosition maps a timestamp to the buffer position of the first column written after it.
func (s *Store) ResolvePosition(ts int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.written {
		return 0
	}
	n := min(s.ticksIn(secondsBetween(ts, s.lastWrite)), s.available())
	return (s.cursor - n + s.capacity) % s.capacity
}

// Recent returns the last n written columns along with their timestamps and sequence ids.
func (s *Store) Recent(n int) Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n = min(max(n, 0), s.available())
	b := Batch{
		Tickers:    s.tickers,
		Columns:    s.copyColumns(n),
		Timestamps: make([]int64, n),
		SeqIDs:     make([]int64, n),
	}
	for k := 0; k < n; k++ {
		back := n - 1 - k
		b.Timestamps[k] = s.lastWrite - int64(time.Duration(back)*s.interval/time.Second)
		b.SeqIDs[k] = s.sequence - int64(back)
	}
	return b
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Tickers:            len(s.tickers),
		Capacity:           s.capacity,
		WriteCursor:        s.cursor,
		HasWrapped:         s.wrapped,
		AvailableTicks:     s.available(),
		LastWriteTimestamp: s.lastWrite,
		Sequence:           s.sequence,
	}
}

// snapshot copies the last n columns. Caller holds the read lock.
func (s *Store) snapshot(n int) Snapshot {
	n = min(max(n, 0), s.available())
	snap := Snapshot{
		Columns:         s.copyColumns(n),
		ResyncTimestamp: s.lastWrite,
		NextIndex:       s.cursor,
		EndTimestamp:    s.lastWrite,
	}
	if n > 0 {
		snap.ResyncTimestamp = s.lastWrite + 1
	}
	return snap
}

// copyColumns copies the n columns ending at the cursor in chronological order:
// [cursor-n, cursor) when they fit in front of the cursor, otherwise the tail
// [capacity-(n-cursor), capacity) followed by the head [0, cursor).
func (s *Store) copyColumns(n int) [][]models.Quote {
	cols := make([][]models.Quote, 0, n)
	if n <= s.cursor {
		for c := s.cursor - n; c < s.cursor; c++ {
			cols = append(cols, s.cloneColumn(c))
		}
		return cols
	}
	for c := s.capacity - (n - s.cursor); c < s.capacity; c++ {
		cols = append(cols, s.cloneColumn(c))
	}
	for c := 0; c < s.cursor; c++ {
		cols = append(cols, s.cloneColumn(c))
	}
	return cols
}

func (s *Store) cloneColumn(c int) []models.Quote {
	out := make([]models.Quote, len(s.tickers))
	copy(out, s.column(c))
	return out
}

func (s *Store) column(c int) []models.Quote {
	w := len(s.tickers)
	return s.buf[c*w : (c+1)*w]
}

func (s *Store) available() int {
	if s.wrapped {
		return s.capacity
	}
	return s.cursor
}

const maxSpanSeconds = int64(math.MaxInt64 / time.Second)

// ticksIn counts the whole intervals in seconds. Spans past the range of
// time.Duration saturate instead of wrapping negative.
func (s *Store) ticksIn(seconds int64) int {
	switch {
	case seconds <= 0:
		return 0
	case seconds > maxSpanSeconds:
		return int(time.Duration(math.MaxInt64) / s.interval)
	}
	return int(time.Duration(seconds) * time.Second / s.interval)
}

// secondsBetween returns to-from, zero when from is not before to and
// MaxInt64 when the subtraction overflows.
func secondsBetween(from, to int64) int64 {
	if from >= to {
		return 0
	}
	if d := to - from; d > 0 {
		return d
	}
	return math.MaxInt64
}
