package tickstore

import (
	"errors"
	"time"

	"github.com/fertilis/quote-generator/pkg/models"
)

var (
	ErrClockSkew       = errors.New("clock moved backwards")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidConfig   = errors.New("invalid store config")
)

// Clock supplies "now" for timestamp based reads
type Clock interface {
	Now() time.Time
}

// Generator produces a series' next value from its previous one
type Generator interface {
	Next(prev models.Quote) models.Quote
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type Config struct {
	Tickers      []string
	Retention    time.Duration
	TickInterval time.Duration
	InitialQuote models.Quote
}

// Snapshot is a copy of a contiguous run of columns, oldest first.
// Columns[k][i] is ticker i's value in the k-th returned column.
type Snapshot struct {
	Columns         [][]models.Quote
	ResyncTimestamp int64
	NextIndex       int
	EndTimestamp    int64
}

// Rows transposes the snapshot into one slice per ticker
func (s Snapshot) Rows(seriesCount int) [][]models.Quote {
	rows := make([][]models.Quote, seriesCount)
	for i := range rows {
		rows[i] = make([]models.Quote, len(s.Columns))
		for k, col := range s.Columns {
			rows[i][k] = col[i]
		}
	}
	return rows
}

func (s Snapshot) Payload(seriesCount int) models.QuotesPayload {
	return models.QuotesPayload{
		Quotes:             s.Rows(seriesCount),
		NextIndex:          s.NextIndex,
		EndTimestampSec:    s.EndTimestamp,
		ResyncTimestampSec: s.ResyncTimestamp,
	}
}

// Batch is a run of freshly written columns handed to sinks
type Batch struct {
	Tickers    []string
	Columns    [][]models.Quote
	Timestamps []int64 // unix seconds, one per column
	SeqIDs     []int64 // one per column
}

func (b Batch) Len() int { return len(b.Columns) }

type Stats struct {
	Tickers            int   `json:"tickers"`
	Capacity           int   `json:"capacity"`
	WriteCursor        int   `json:"write_cursor"`
	HasWrapped         bool  `json:"has_wrapped"`
	AvailableTicks     int   `json:"available_ticks"`
	LastWriteTimestamp int64 `json:"last_write_timestamp_sec"`
	Sequence           int64 `json:"sequence"`
}
