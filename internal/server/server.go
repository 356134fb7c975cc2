// Package server implements the Boundary Adapter of SPEC_FULL.md §4.M: the
// HTTP/WebSocket edge that terminates browser connections, decodes inbound
// envelopes, and turns session.Engine results into outbound events. The
// package never makes domain decisions itself — every accept/reject and
// every state transition is resolved by internal/session.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/dropvault/signalcore/internal/audit"
	signalmetrics "github.com/dropvault/signalcore/internal/metrics"
	"github.com/dropvault/signalcore/internal/session"
)

const readHeaderTimeout = 10 * time.Second

// Config bundles the Boundary Adapter's dependencies.
type Config struct {
	Addr      string
	ClientURL string
	Engine    *session.Engine
	AuditLog  *audit.Log
	Metrics   *signalmetrics.Collector
	Logger    *slog.Logger
}

// Server is the HTTP/WebSocket edge of the daemon (§4.M, §6).
type Server struct {
	log     *slog.Logger
	engine  *session.Engine
	audit   *audit.Log
	metrics *signalmetrics.Collector

	connsMu sync.Mutex
	conns   map[string]*endpointConn

	httpServer *http.Server
}

// New constructs a Server ready to Run. Routing, CORS, and the fixed
// security headers of §6 are wired here.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		log:     logger,
		engine:  cfg.Engine,
		audit:   cfg.AuditLog,
		metrics: cfg.Metrics,
		conns:   make(map[string]*endpointConn),
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWS)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	router.HandleFunc("/api/ice-servers", s.handleICEServers).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/sessions", s.handleAdminSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/audit", s.handleAdminAudit).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	})

	handler := securityHeaders(corsHandler.Handler(router))
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Run listens and serves until ctx is cancelled, then returns after
// http.ErrServerClosed is swallowed. Intended to be launched under an
// errgroup alongside the Sweeper.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown gracefully drains the HTTP server and closes every live
// WebSocket connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.connsMu.Lock()
	for _, c := range s.conns {
		c.close()
	}
	s.connsMu.Unlock()

	return err
}
