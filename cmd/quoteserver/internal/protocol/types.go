package protocol

const (
	ActionSubscribe       = "subscribe"
	ActionUnsubscribe     = "unsubscribe"
	ActionUnsubscribeAll  = "unsubscribe_all"
	ActionQuotesRequested = "quotes_requested"
	ActionQuotesSince     = "quotes_since"
)

const (
	TypeAck        = "ack"
	TypeError      = "error"
	TypeTicker     = "ticker"
	TypeQuotesSent = "quotes_sent"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

// RequestPayload carries the arguments of every action; pointers distinguish "absent" from zero.
type RequestPayload struct {
	Symbols          []string `json:"symbols,omitempty"`
	FromIndex        *int     `json:"from_index,omitempty"`
	FromTimestampSec *int64   `json:"from_timestamp_sec,omitempty"`
}

type WSResponse struct {
	Type    string      `json:"type"`             // "ack", "error", "ticker", "quotes_sent"
	ID      string      `json:"id,omitempty"`     // matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
