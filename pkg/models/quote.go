package models

import "math"

// Quote is a single simulated price point. The whole range of the type is usable.
type Quote uint16

const (
	MinQuote Quote = 0
	MaxQuote Quote = math.MaxUint16
)

// QuoteTick is one ticker's value for one tick, as published to Kafka
type QuoteTick struct {
	Symbol    string `json:"symbol"`
	Quote     Quote  `json:"quote"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	SeqID     int64  `json:"seq_id"`    // monotonic column counter, shared by all tickers
}

// QuotesPayload is the catch-up response shared by the HTTP API and the websocket gateway.
// Quotes is laid out per ticker: Quotes[i] holds ticker i's values, oldest first.
type QuotesPayload struct {
	Quotes             [][]Quote `json:"quotes"`
	NextIndex          int       `json:"next_index"`
	EndTimestampSec    int64     `json:"end_timestamp_sec"`
	ResyncTimestampSec int64     `json:"resync_timestamp_sec"`
}

// TickerUpdate is pushed to websocket subscribers after every producer firing
type TickerUpdate struct {
	Symbol          string  `json:"symbol"`
	Quotes          []Quote `json:"quotes"`
	EndTimestampSec int64   `json:"end_timestamp_sec"`
	SeqID           int64   `json:"seq_id"` // sequence of the last quote in Quotes
}
