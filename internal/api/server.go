package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds all component checks of one health request.
const healthCheckTimeout = 3 * time.Second

// HealthChecker is a component whose health GET /health reports.
// database.DB, mqtt.Client and influxdb.Client implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Site    config.SiteConfig
	Logger  *logging.Logger
	Service *overrides.Service
	Version string

	// Checks are the components reported by GET /health, keyed by name.
	// One failing check turns the response into 503.
	Checks map[string]HealthChecker
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	site    config.SiteConfig
	logger  *logging.Logger
	service *overrides.Service
	version string
	checks  map[string]HealthChecker
	server  *http.Server
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, overrides service)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("overrides service is required")
	}

	checks := make(map[string]HealthChecker, len(deps.Checks))
	for name, c := range deps.Checks {
		if c != nil {
			checks[name] = c
		}
	}

	return &Server{
		cfg:     deps.Config,
		site:    deps.Site,
		logger:  deps.Logger,
		service: deps.Service,
		version: deps.Version,
		checks:  checks,
	}, nil
}

// Handler returns the HTTP handler with all routes and middleware.
// Start uses it for the listener; tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for request contexts
//
// Returns:
//   - error: If the server is already started
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
		BaseContext:       func(_ net.Listener) context.Context { return srvCtx },
	}

	if s.cfg.Auth.JWTSecret == "" && !isLoopback(s.cfg.Host) {
		s.logger.Warn("API listens beyond loopback without authentication; set GRAYLOGIC_JWT_SECRET",
			"host", s.cfg.Host)
	}

	go func() {
		s.logger.Info("API server starting",
			"address", s.server.Addr,
			"auth", s.cfg.Auth.JWTSecret != "",
		)
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
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// isLoopback reports whether host only accepts local connections.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
