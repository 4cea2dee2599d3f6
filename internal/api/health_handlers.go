package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/ceplayer/internal/logger"
)

// handleHealth returns a liveness probe - always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady returns 200 when every configured dependency answers, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	log := logger.FromContext(ctx)

	for _, rc := range s.ReadyChecks {
		if err := rc.Check(ctx); err != nil {
			log.Warn("readiness check failed - %s: %v", rc.Name, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(rc.Name + " unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
