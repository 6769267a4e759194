package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/soyeahso/supportwire/internal/version"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Sessions      int    `json:"sessions"`
	Conversations int    `json:"conversations"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       version.Version,
		Sessions:      s.rooms.Count(),
		Conversations: s.rooms.Conversations(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not found", http.StatusNotFound)
}
