package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

const writeTimeout = 5 * time.Second

// handleStream pushes the latest snapshot on connect, then every published one.
// Clients that fall behind miss intermediate snapshots; each message is complete.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // dashboard is served from another origin
	})
	if err != nil {
		slog.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	updates, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	// client messages are ignored; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	if snap, ok := s.source.Latest(); ok {
		if err := send(ctx, conn, snap); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := send(ctx, conn, snap); err != nil {
				slog.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, snap domain.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}
