package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
}

// handleHealth returns 200 when the store answers, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		code := http.StatusOK

		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			s.logger.Error("gateway: health probe failed", "error", err)
		}

		writeJSON(w, code, resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime      time.Duration `json:"uptime_seconds"`
	Definitions int           `json:"definitions"`
	Active      int           `json:"active"`
	Orphaned    int           `json:"orphaned"`
	Bulks       int           `json:"bulks"`
}

// handleStatus reports uptime and live schedule counts.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := s.store.Definitions(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		bulks, err := s.store.Bulks(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		resp := StatusResponse{
			Uptime:      time.Since(s.startedAt).Truncate(time.Second) / time.Second,
			Definitions: len(defs),
			Bulks:       len(bulks),
		}
		for _, d := range defs {
			if d.Active {
				resp.Active++
				if d.BeatKey == "" {
					resp.Orphaned++
				}
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
