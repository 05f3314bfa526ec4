package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"guestpulse/internal/microservices/realtime"
)

// Gateway upgrades authenticated HTTP requests to websocket sessions. Each
// session owns its own Reconciler, constructed at connection time and torn
// down at disconnect; the gateway itself holds no per-client state.
type Gateway struct {
	source    realtime.SnapshotSource
	transport realtime.Transport
	logger    *slog.Logger
	opts      realtime.Options
	upgrader  websocket.Upgrader
}

func NewGateway(source realtime.SnapshotSource, transport realtime.Transport, logger *slog.Logger, opts realtime.Options) *Gateway {
	return &Gateway{
		source:    source,
		transport: transport,
		logger:    logger,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced upstream together with the bearer token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle runs behind the auth middleware; identity and role come from the
// validated token, never from the request.
func (g *Gateway) Handle(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	role, _ := c.Get("role")
	roleName, _ := role.(string)

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newSession(conn, userID.(string), roleName, g.source, g.transport, g.logger, g.opts)
	go s.run()
}
