package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"guestpulse/internal/microservices/realtime"
)

const ( // ping pong (2-way heartbeat) to keep the connection alive
	writeWait      = 10 * time.Second    // max time to write a message to the peer
	pongWait       = 60 * time.Second    // max time to wait for pong from peer
	pingPeriod     = (pongWait * 9) / 10 // send pings before the pong wait expires
	maxMessageSize = 512                 // maximum message size allowed from peer
)

// session is one websocket connection paired with its Reconciler. The
// reconciler merges real-time events server-side; the session pushes the
// resulting snapshots to the browser, which only has to render them.
type session struct {
	conn   *websocket.Conn
	rec    *realtime.Reconciler
	logger *slog.Logger
}

func newSession(conn *websocket.Conn, userID, role string, source realtime.SnapshotSource, transport realtime.Transport, logger *slog.Logger, opts realtime.Options) *session {
	return &session{
		conn:   conn,
		rec:    realtime.NewReconciler(userID, role, source, transport, logger, opts),
		logger: logger.With("user_id", userID),
	}
}

func (s *session) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.conn.Close()
	defer s.rec.Close()

	go s.rec.Run(ctx)
	go s.readPump(cancel)
	s.writePump(ctx)
}

// readPump discards inbound frames; the socket is push-only. It exists to
// service pongs and to detect the peer going away.
func (s *session) readPump(cancel context.CancelFunc) {
	defer cancel()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump streams reconciler snapshots to the peer and keeps the heartbeat
// going. Snapshots are authoritative and coalesced, so a slow client simply
// sees fewer intermediate states.
func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case snap := <-s.rec.Updates():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(snap); err != nil {
				s.logger.Warn("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
