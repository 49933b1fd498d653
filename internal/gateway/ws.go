package gateway

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleExecutionsFeed streams execution events to a WebSocket client as
// they are recorded. The feed is best-effort: a slow client misses
// events rather than blocking the runner, and the durable history stays
// in the store.
func (s *Server) handleExecutionsFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Error("gateway: websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		events, cancel := s.hub.Subscribe()
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			}
		}
	}
}
