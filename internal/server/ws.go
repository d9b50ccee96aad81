package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"options-scanner/internal/domain"
	"options-scanner/internal/observability"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// wsEvent is one WebSocket frame: the event type plus its payload.
type wsEvent struct {
	Type domain.EventType `json:"type"`
	Data any              `json:"data"`
}

// handleScanWS is the WebSocket variant of the scan stream. The client sends
// one ScanFilters JSON message after connecting; the server streams events as
// JSON frames and closes when the scan ends. Closing the socket cancels the
// scan between waves.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	observability.DefaultMetrics.StreamClients.WithLabelValues("ws").Inc()
	defer observability.DefaultMetrics.StreamClients.WithLabelValues("ws").Dec()

	var filters domain.ScanFilters
	if err := conn.ReadJSON(&filters); err != nil {
		conn.WriteJSON(wsEvent{Type: domain.EventError, Data: map[string]string{"message": "invalid filters payload"}})
		return
	}

	if err := filters.Validate(); err != nil {
		conn.WriteJSON(wsEvent{Type: domain.EventError, Data: map[string]string{"message": err.Error()}})
		return
	}

	ctx := r.Context()
	events := s.scanner.Run(ctx, filters)
	for ev := range events {
		if err := conn.WriteJSON(wsEvent{Type: ev.Type, Data: ev.Payload()}); err != nil {
			observability.DefaultMetrics.StreamDisconnects.WithLabelValues("ws").Inc()
			return
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
