package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/avarelay/internal/config"
	"github.com/vyrodovalexey/avarelay/internal/observability"
)

// ServerConfig holds configuration for the relay HTTP server.
type ServerConfig struct {
	Address        string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TLS            *tls.Config
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           config.DefaultPort,
		ReadTimeout:    config.DefaultReadTimeout,
		WriteTimeout:   config.DefaultWriteTimeout,
		IdleTimeout:    config.DefaultIdleTimeout,
		MaxHeaderBytes: config.DefaultMaxHeaderBytes,
	}
}

// ServerConfigFromSpec maps the configured server settings onto a
// ServerConfig, applying defaults for unset values.
func ServerConfigFromSpec(sc config.ServerConfig, tlsConfig *tls.Config) *ServerConfig {
	out := DefaultServerConfig()
	out.Address = sc.Address
	out.Port = sc.EffectivePort()
	out.TLS = tlsConfig

	if sc.ReadTimeout > 0 {
		out.ReadTimeout = sc.ReadTimeout.Duration()
	}
	if sc.WriteTimeout > 0 {
		out.WriteTimeout = sc.WriteTimeout.Duration()
	}
	if sc.IdleTimeout > 0 {
		out.IdleTimeout = sc.IdleTimeout.Duration()
	}
	if sc.MaxHeaderBytes > 0 {
		out.MaxHeaderBytes = sc.MaxHeaderBytes
	}

	return out
}

// Server is the relay HTTP server.
type Server struct {
	config     *ServerConfig
	handler    http.Handler
	httpServer *http.Server
	logger     observability.Logger
	mu         sync.Mutex
	running    bool
}

// NewServer creates a new relay server for the given handler.
func NewServer(cfg *ServerConfig, handler http.Handler, logger observability.Logger) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		TLSConfig:      s.config.TLS,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting relay server",
		observability.String("address", addr),
		observability.Bool("tls", s.config.TLS != nil),
	)

	go func() {
		var err error
		if s.config.TLS != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("relay server error", observability.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping relay server")
	return server.Shutdown(ctx)
}

// Running reports whether the server is currently serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
