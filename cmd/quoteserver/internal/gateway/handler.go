package gateway

import (
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/fertilis/quote-generator/cmd/quoteserver/internal/hub"
	"github.com/fertilis/quote-generator/pkg/config"
)

// Handler upgrades requests to websocket connections served by the hub
func Handler(h *hub.Hub, logger *zap.Logger, cfg config.GatewayConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(conn, h, logger, cfg)
		client.Start()
	})
}
