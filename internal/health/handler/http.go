// Package handler exposes liveness/readiness over HTTP for Kubernetes, load
// balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Pinger reports backing-store reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server handles GET /health.
type Server struct {
	pinger Pinger
}

// NewServer returns a health server. pinger may be nil; the DB check is then
// skipped and the service reports ok on liveness alone.
func NewServer(pinger Pinger) *Server {
	return &Server{pinger: pinger}
}

// Check reports 200 ok when the service and its store are reachable, 503
// degraded otherwise.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.pinger.PingContext(ctx); err != nil {
			log.Printf("health: db ping failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:  "degraded",
				Message: "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Message: "contact identity service is up",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("health: encode response: %v", err)
	}
}
