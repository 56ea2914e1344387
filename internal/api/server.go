package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-ambeo/internal/audit"
	bridge "github.com/nerrad567/gray-logic-ambeo/internal/bridges/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/device"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket keepalive defaults, in seconds, for an unset config.
const (
	defaultPingInterval = 30
	defaultPongTimeout  = 10
)

// Bridge is the part of the AMBEO bridge the API drives.
type Bridge interface {
	Soundbars() []bridge.SoundbarStatus
	Soundbar(id string) (bridge.SoundbarStatus, error)
	State(id string) (*bridge.StateMessage, error)
	Refresh(ctx context.Context, id string) (*bridge.StateMessage, error)
	ExecuteCommand(ctx context.Context, cmd bridge.CommandMessage) bridge.AckMessage
	HandleRequest(ctx context.Context, req bridge.RequestMessage) bridge.ResponseMessage
	OnStateChange(fn func(bridge.StateMessage))
	Counts() bridge.SoundbarCounts
}

// SoundbarStore reads persisted soundbar records.
type SoundbarStore interface {
	GetSoundbar(ctx context.Context, id string) (*device.Soundbar, error)
	GetStats() device.Stats
}

// CommandHistory lists recorded commands.
type CommandHistory interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Bridge   Bridge

	// Registry adds serial and firmware details to soundbar responses.
	Registry SoundbarStore

	// MQTT is reported in the health response when set.
	MQTT ConnectionChecker

	// History enables GET /soundbars/{id}/commands when set.
	History CommandHistory

	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// RefreshTimeout bounds POST /soundbars/{id}/refresh.
	// Defaults to the bridge's CommandTimeout.
	RefreshTimeout time.Duration

	Version string
}

// Server is the local HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	bridge   Bridge
	registry SoundbarStore
	mqtt     ConnectionChecker
	history  CommandHistory
	gatherer prometheus.Gatherer
	version  string
	refresh  time.Duration
	tickets  *ticketStore
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	wsCfg := deps.WS
	if wsCfg.PingInterval <= 0 {
		wsCfg.PingInterval = defaultPingInterval
	}
	if wsCfg.PongTimeout <= 0 {
		wsCfg.PongTimeout = defaultPongTimeout
	}

	refreshTimeout := deps.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = bridge.CommandTimeout
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    wsCfg,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		registry: deps.Registry,
		mqtt:     deps.MQTT,
		history:  deps.History,
		gatherer: gatherer,
		version:  deps.Version,
		refresh:  refreshTimeout,
		tickets:  newTicketStore(),
		hub:      NewHub(wsCfg, deps.Logger),
	}

	// Listeners cannot be removed from the bridge, so the relay is
	// registered once here rather than on every Start.
	s.bridge.OnStateChange(func(state bridge.StateMessage) {
		s.hub.Broadcast(state.SoundbarID, state)
	})

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, builds the router, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr, "auth", s.authEnabled())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
