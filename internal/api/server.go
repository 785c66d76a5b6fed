package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/control"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionChecker reports whether an optional link is up.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  *control.Service
	Store    *catalog.Store

	// Optional.
	Audit      audit.Repository
	MQTT       ConnectionChecker
	InfluxDB   ConnectionChecker
	Controller ConnectionChecker
	DB         DBStatser
	History    HistoryReader

	// ExternalHub is used instead of a hub of the server's own, so the
	// command service can broadcast through it.
	ExternalHub *Hub
	Version     string
}

// Server is the HTTP API server of the bridge.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	service    *control.Service
	store      *catalog.Store
	auditRepo  audit.Repository
	mqtt       ConnectionChecker
	influx     ConnectionChecker
	controller ConnectionChecker
	db         DBStatser
	history    HistoryReader
	version    string

	server      *http.Server
	hub         *Hub
	externalHub bool
	startTime   time.Time
	cancel      context.CancelFunc
}

// New creates a new API server. The server is not started until Start().
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("command service is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("catalog store is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		service:    deps.Service,
		store:      deps.Store,
		auditRepo:  deps.Audit,
		mqtt:       deps.MQTT,
		influx:     deps.InfluxDB,
		controller: deps.Controller,
		db:         deps.DB,
		history:    deps.History,
		version:    deps.Version,
		startTime:  time.Now(),
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start builds the router and begins listening in the background. The
// server is stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr, "auth", s.authEnabled())
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
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

func (s *Server) authEnabled() bool {
	return s.secCfg.JWT.Secret != ""
}
