// Package server exposes the scan pipeline over HTTP: an SSE scan stream, a
// WebSocket variant, the heatmap and universe catalogue endpoints, and the
// cache-clear and health controls.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"options-scanner/internal/cache"
	"options-scanner/internal/heatmap"
	"options-scanner/internal/observability"
	"options-scanner/internal/scanner"
	"options-scanner/internal/universe"
)

// Options configures a Server.
type Options struct {
	Scanner    *scanner.Scanner
	Heatmap    *heatmap.Service
	Cache      *cache.Cache
	CORSOrigin string
	Logger     *log.Logger
}

// Server routes API requests to the scan pipeline and its satellites.
type Server struct {
	router     *mux.Router
	scanner    *scanner.Scanner
	heatmap    *heatmap.Service
	cache      *cache.Cache
	corsOrigin string
	logger     *log.Logger
	started    time.Time
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		scanner:    opts.Scanner,
		heatmap:    opts.Heatmap,
		cache:      opts.Cache,
		corsOrigin: opts.CORSOrigin,
		logger:     opts.Logger,
		started:    time.Now(),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "[server] ", log.LstdFlags)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/scan/ws", s.handleScanWS).Methods(http.MethodGet)
	api.HandleFunc("/universes", s.handleUniverses).Methods(http.MethodGet)
	api.HandleFunc("/heatmap", s.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/cache/clear", s.handleCacheClear).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	s.router.Use(s.corsMiddleware)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Options Scanner API",
	})
}

func (s *Server) handleUniverses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"universes": universe.Catalogue(),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1d"
	}

	resp, err := s.heatmap.Get(r.Context(), period)
	if err != nil {
		s.logger.Printf("heatmap %s: %v", period, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "heatmap data unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Cache cleared",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"cache_entries":  s.cache.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing left to do.
		_ = err
	}
}
