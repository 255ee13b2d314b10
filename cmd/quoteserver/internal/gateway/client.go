package gateway

import (
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/hub"
	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/protocol"
	"github.com/fertilis/quote-generator/pkg/config"
)

const sendBuffer = 256

type ClientAdapter struct {
	id     string
	conn   net.Conn
	hub    *hub.Hub
	send   chan []byte
	pongs  chan []byte
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger, cfg config.GatewayConfig) *ClientAdapter {
	id := uuid.NewString()
	return &ClientAdapter{
		id:             id,
		conn:           conn,
		hub:            h,
		send:           make(chan []byte, sendBuffer),
		pongs:          make(chan []byte, 1),
		done:           make(chan struct{}),
		logger:         logger.With(zap.String("client_id", id), zap.String("remote", conn.RemoteAddr().String())),
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

func (c *ClientAdapter) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.id }

// Close stops the write pump, which closes the connection.
func (c *ClientAdapter) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// SendJSON queues a response, waiting for room unless the client is gone.
func (c *ClientAdapter) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("JSON Marshal Error", zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	}
}

func (c *ClientAdapter) SendBytes(b []byte) {
	select {
	case c.send <- b:
	default:
		// buffer full: drop the push
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Client read panic", zap.Any("panic", r))
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > c.maxMessageSize {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		// any complete frame proves the peer is alive
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing:
			select {
			case c.pongs <- payload:
			default:
				// a pong is already pending
			}
		case ws.OpText:
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: "Invalid JSON"})
				continue
			}

			for i, s := range req.Payload.Symbols {
				req.Payload.Symbols[i] = strings.TrimSpace(s)
			}

			c.hub.HandleCommand(c, req)
		}
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case p := <-c.pongs:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPong, p); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			c.conn.Write(ws.CompiledClose)
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
