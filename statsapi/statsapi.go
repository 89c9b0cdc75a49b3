// Package statsapi exposes the dispatcher's cache/region statistics
// over HTTP: a small ServeMux route table, a health endpoint, and
// CORS restricted to localhost, as a read-only monitoring surface.
package statsapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lookbusy1344/arm64jit/dispatch"
)

// StatsSource is anything that can report the current runtime
// snapshot; dispatch.Dispatcher satisfies it.
type StatsSource interface {
	Stats() dispatch.Stats
}

// Server is the read-only HTTP monitoring surface for one Dispatcher.
type Server struct {
	source StatsSource
	mux    *http.ServeMux
	server *http.Server
	port   int
}

// NewServer builds a Server bound to port, reporting source's stats.
func NewServer(port int, source StatsSource) *Server {
	s := &Server{source: source, mux: http.NewServeMux(), port: port}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/stats/cache", s.handleCacheStats)
	s.mux.HandleFunc("/stats/region", s.handleRegionStats)
	s.mux.HandleFunc("/stats", s.handleAllStats)
}

// Handler returns the HTTP handler with CORS middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	log.Printf("stats server starting on http://127.0.0.1:%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isLocalOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next.ServeHTTP(w, r)
	})
}

func isLocalOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Stats().Cache)
}

func (s *Server) handleRegionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Stats().Region)
}

func (s *Server) handleAllStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Stats())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("statsapi: error encoding JSON: %v", err)
	}
}
