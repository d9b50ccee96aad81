package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"options-scanner/internal/domain"
	"options-scanner/internal/observability"
)

// handleScan runs one scan and streams its events as Server-Sent Events. The
// event name carries the type; the data line carries the JSON payload. The
// request context cancels the scan when the client disconnects.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var filters domain.ScanFilters
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := filters.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	observability.DefaultMetrics.StreamClients.WithLabelValues("sse").Inc()
	defer observability.DefaultMetrics.StreamClients.WithLabelValues("sse").Dec()

	events := s.scanner.Run(r.Context(), filters)
	for ev := range events {
		if err := writeSSE(w, ev); err != nil {
			observability.DefaultMetrics.StreamDisconnects.WithLabelValues("sse").Inc()
			s.logger.Printf("sse write failed: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, ev domain.ScanEvent) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
