package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/protocol"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/tickstore"
	"github.com/fertilis/quote-generator/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// QuoteReader is the read side of the tick store
type QuoteReader interface {
	Tickers() []string
	SnapshotSince(ts int64) tickstore.Snapshot
	SnapshotFromIndex(idx int) (tickstore.Snapshot, error)
}

type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	quotes  QuoteReader
	tickers map[string]int // symbol -> series index
	logger  *zap.Logger
	mu      sync.RWMutex
}

func NewHub(quotes QuoteReader, logger *zap.Logger) *Hub {
	tickers := make(map[string]int)
	for i, sym := range quotes.Tickers() {
		tickers[sym] = i
	}
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		quotes:      quotes,
		tickers:     tickers,
		logger:      logger,
	}
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	case protocol.ActionQuotesRequested:
		h.handleQuotesRequested(client, req)
	case protocol.ActionQuotesSince:
		h.handleQuotesSince(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleQuotesRequested(client ClientInterface, req protocol.WSRequest) {
	if req.Payload.FromIndex == nil {
		h.sendError(client, req.ID, "from_index is required")
		return
	}
	snap, err := h.quotes.SnapshotFromIndex(*req.Payload.FromIndex)
	if err != nil {
		h.sendError(client, req.ID, err.Error())
		return
	}
	h.sendQuotes(client, req.ID, snap)
}

func (h *Hub) handleQuotesSince(client ClientInterface, req protocol.WSRequest) {
	if req.Payload.FromTimestampSec == nil {
		h.sendError(client, req.ID, "from_timestamp_sec is required")
		return
	}
	h.sendQuotes(client, req.ID, h.quotes.SnapshotSince(*req.Payload.FromTimestampSec))
}

func (h *Hub) sendQuotes(client ClientInterface, id string, snap tickstore.Snapshot) {
	client.SendJSON(protocol.WSResponse{
		Type:   protocol.TypeQuotesSent,
		ID:     id,
		Status: "success",
		Data:   snap.Payload(len(h.tickers)),
	})
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []string
	for _, s := range req.Payload.Symbols {
		if _, ok := h.tickers[s]; !ok {
			continue
		}
		// already subscribed
		if h.clientSubs[client] != nil && h.clientSubs[client][s] {
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new symbols provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}
	for _, sym := range valid {
		h.clientSubs[client][sym] = true
		if h.subscribers[sym] == nil {
			h.subscribers[sym] = make(map[ClientInterface]bool)
		}
		h.subscribers[sym][client] = true
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, sym := range req.Payload.Symbols {
			if subs[sym] {
				delete(subs, sym)
				h.dropSubscriber(sym, client)
				removed = append(removed, sym)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Symbols))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.dropSubscriber(sym, client)
		}
		// keep the client registered
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all symbols")
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.dropSubscriber(sym, client)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

// Publish pushes the new columns of every subscribed ticker to its subscribers.
// Slow clients drop messages instead of holding up the producer.
func (h *Hub) Publish(ctx context.Context, b tickstore.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	last := b.Len() - 1
	for sym, clients := range h.subscribers {
		if len(clients) == 0 {
			continue
		}
		idx, ok := h.tickers[sym]
		if !ok {
			continue
		}

		update := models.TickerUpdate{
			Symbol:          sym,
			Quotes:          make([]models.Quote, b.Len()),
			EndTimestampSec: b.Timestamps[last],
			SeqID:           b.SeqIDs[last],
		}
		for k, col := range b.Columns {
			update.Quotes[k] = col[idx]
		}

		msg, err := json.Marshal(protocol.WSResponse{Type: protocol.TypeTicker, Data: update})
		if err != nil {
			return fmt.Errorf("marshal update for %s: %w", sym, err)
		}
		for client := range clients {
			client.SendBytes(msg)
		}
	}
	return nil
}

func (h *Hub) SubscriberCount(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[symbol])
}

// caller holds the write lock
func (h *Hub) dropSubscriber(symbol string, client ClientInterface) {
	delete(h.subscribers[symbol], client)
	if len(h.subscribers[symbol]) == 0 {
		delete(h.subscribers, symbol)
	}
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}
