package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health statuses reported by GET /api/v1/health.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// buildRouter creates the chi router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", s.handleHealth)

		// The WebSocket authenticates with a ticket, not a bearer header.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/soundbars", func(r chi.Router) {
				r.Get("/", s.handleListSoundbars)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSoundbar)
					r.Get("/state", s.handleGetState)
					r.Post("/refresh", s.handleRefresh)
					r.Post("/commands", s.handleCommand)
					if s.history != nil {
						r.Get("/commands", s.handleCommandHistory)
					}
				})
			})

			r.Post("/requests", s.handleRequest)
		})
	})

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	Timestamp     string         `json:"timestamp"`
	MQTTConnected *bool          `json:"mqtt_connected,omitempty"`
	Soundbars     any            `json:"soundbars"`
	Health        map[string]int `json:"health,omitempty"`
	WSClients     int            `json:"websocket_clients"`
}

// handleHealth returns the bridge's health. It reports degraded while the
// broker is disconnected or any soundbar has not finished setup.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	counts := s.bridge.Counts()
	resp := healthResponse{
		Status:    healthOK,
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Soundbars: counts,
		WSClients: s.hub.ClientCount(),
	}

	if counts.Pending > 0 || counts.Failed > 0 {
		resp.Status = healthDegraded
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
		if !connected {
			resp.Status = healthDegraded
		}
	}
	if s.registry != nil {
		stats := s.registry.GetStats()
		resp.Health = make(map[string]int, len(stats.ByHealthStatus))
		for status, n := range stats.ByHealthStatus {
			resp.Health[string(status)] = n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
