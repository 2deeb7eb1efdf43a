package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/grove-sh/grove/internal/log"
	"github.com/grove-sh/grove/internal/tracing"
)

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	handler  *Handler
	server   *http.Server
	listener net.Listener
	addr     string
	port     int // Actual port after binding (useful when using :0)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8500").
	Addr string
	// Handler serves the registry routes.
	Handler *Handler
	// Tracer wraps requests in spans when non-nil.
	Tracer trace.Tracer
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// NewServer creates a registry server.
// If Addr uses port 0 (e.g., "localhost:0" or ":0"), the OS will assign an
// available port. Use Port() after construction to get the actual port.
func NewServer(cfg ServerConfig) (*Server, error) {
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	// WriteTimeout stays zero by default so SSE connections are not cut off.
	writeTimeout := cfg.WriteTimeout

	// Create listener first to get the actual port (important for :0)
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	routes := tracing.Middleware(cfg.Tracer, cfg.Handler.Routes())

	return &Server{
		handler:  cfg.Handler,
		addr:     cfg.Addr,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           routes,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
	}, nil
}

// Start starts the HTTP server. It blocks until the server is stopped or fails.
func (s *Server) Start() error {
	log.Info(log.CatHTTP, "starting server", "addr", s.listener.Addr().String(), "port", s.port)
	return s.server.Serve(s.listener)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatHTTP, "stopping server")
	return s.server.Shutdown(ctx)
}

// Port returns the actual port the server is listening on.
// This is useful when the server was configured with port 0 for auto-assignment.
func (s *Server) Port() int {
	return s.port
}
