package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/trace"
)

type QuoteReader interface {
	Tickers() []string
	TickInterval() time.Duration
	SnapshotSince(ts int64) tickstore.Snapshot
	SnapshotFromIndex(idx int) (tickstore.Snapshot, error)
	ResolvePosition(ts int64) int
	Stats() tickstore.Stats
}

type Server struct {
	quotes QuoteReader
	ws     http.Handler
	logger *zap.Logger
}

// NewServer wires the REST endpoints; ws, when set, serves websocket upgrades on /ws.
func NewServer(quotes QuoteReader, ws http.Handler, logger *zap.Logger) *Server {
	return &Server{quotes: quotes, ws: ws, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/quotes", s.handleQuotesSince)
	mux.HandleFunc("GET /api/quotes/index", s.handleQuotesFromIndex)
	mux.HandleFunc("GET /api/position", s.handlePosition)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	return mux
}

type configResponse struct {
	Tickers         []string `json:"tickers"`
	TickIntervalSec float64  `json:"tick_interval_sec"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, configResponse{
		Tickers:         s.quotes.Tickers(),
		TickIntervalSec: s.quotes.TickInterval().Seconds(),
	})
}

func (s *Server) handleQuotesSince(w http.ResponseWriter, r *http.Request) {
	_, span := trace.StartSpan(r.Context(), "api.QuotesSince")
	defer span.End()

	ts, err := queryInt(r, "from_timestamp_sec")
	if err != nil {
		trace.RecordError(span, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := s.quotes.SnapshotSince(ts)
	span.SetAttributes(attribute.Int("columns", len(snap.Columns)))
	s.writeJSON(w, snap.Payload(len(s.quotes.Tickers())))
}

func (s *Server) handleQuotesFromIndex(w http.ResponseWriter, r *http.Request) {
	_, span := trace.StartSpan(r.Context(), "api.QuotesFromIndex")
	defer span.End()

	idx, err := queryInt(r, "from_index")
	if err != nil {
		trace.RecordError(span, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := s.quotes.SnapshotFromIndex(int(idx))
	if err != nil {
		trace.RecordError(span, err)
		status := http.StatusInternalServerError
		if errors.Is(err, tickstore.ErrIndexOutOfRange) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	span.SetAttributes(attribute.Int("columns", len(snap.Columns)))
	s.writeJSON(w, snap.Payload(len(s.quotes.Tickers())))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	ts, err := queryInt(r, "timestamp_sec")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, map[string]int{"index": s.quotes.ResolvePosition(ts)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.quotes.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response Encode Error", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}
