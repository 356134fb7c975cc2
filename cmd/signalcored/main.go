// Command signalcored runs the signalcore daemon: the WebSocket/HTTP
// Boundary Adapter, the signaling Engine, and the periodic Sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dropvault/signalcore/internal/audit"
	"github.com/dropvault/signalcore/internal/config"
	signalmetrics "github.com/dropvault/signalcore/internal/metrics"
	"github.com/dropvault/signalcore/internal/server"
	"github.com/dropvault/signalcore/internal/session"
	appversion "github.com/dropvault/signalcore/internal/version"
)

// shutdownTimeout bounds how long graceful shutdown waits for the HTTP
// server to drain in-flight requests and WebSocket connections to close.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("signalcore starting",
		slog.String("version", appversion.Version),
		slog.String("addr", cfg.Server.Port),
		slog.String("environment", cfg.Server.Environment),
	)

	reg := prometheus.NewRegistry()
	collector := signalmetrics.NewCollector(reg)

	auditLog := audit.NewLog(logger)

	cipher, err := buildFieldCipher(cfg.Security, logger)
	if err != nil {
		logger.Error("failed to build field cipher", slog.String("error", err.Error()))
		return 1
	}

	engine := buildEngine(cfg, cipher, logger, auditLog, collector)
	defer engine.Close()

	sweeper := session.NewSweeper(engine, logger, auditLog.EvictOlderThan7Days)

	srv := server.New(server.Config{
		Addr:      ":" + cfg.Server.Port,
		ClientURL: cfg.Server.ClientURL,
		Engine:    engine,
		AuditLog:  auditLog,
		Metrics:   collector,
		Logger:    logger,
	})
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	if err := runServers(cfg, srv, sweeper, metricsSrv, logger); err != nil {
		logger.Error("signalcore exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("signalcore stopped")
	return 0
}

// buildFieldCipher derives the Field Encryption key from configuration
// (§4.B) and constructs the AES-256-GCM cipher. An empty key is only
// permitted outside production (config.Validate rejects it in production);
// there it falls back to a fixed all-zero development key.
func buildFieldCipher(cfg config.SecurityConfig, logger *slog.Logger) (*session.FieldCipher, error) {
	key, err := session.DeriveFieldKey(cfg.MetadataEncryptionKey)
	if errors.Is(err, session.ErrNoEncryptionKey) {
		logger.Warn("metadata encryption key not set, using the fixed development key")
		key, err = make([]byte, 32), nil
	}
	if err != nil {
		return nil, fmt.Errorf("derive field key: %w", err)
	}
	return session.NewFieldCipher(key, logger)
}

// buildEngine wires every session package component from configuration,
// constructing each dependency explicitly rather than through a DI
// container.
func buildEngine(cfg *config.Config, cipher *session.FieldCipher, logger *slog.Logger, auditLog *audit.Log, collector *signalmetrics.Collector) *session.Engine {
	relayCfg := session.RelayConfig{
		STUNURL:  cfg.Relay.STUNURL,
		TURNHost: cfg.Relay.TURNServer,
		Secret:   cfg.Relay.TURNSecret,
		TLS:      cfg.Relay.TURNSEnabled,
		TTL:      cfg.Relay.CredentialTTL,
	}
	if relayCfg.TLS {
		relayCfg.TURNSHost = cfg.Relay.TURNServer
	}

	// The Abuse Guard's callback carries a free-text detail message meant
	// for humans; the Blocked metric only needs the bounded reason
	// taxonomy from collector.go, so classify rather than use detail as
	// the label directly. The Engine already records its own SECURITY/WARN
	// audit entries for these events (AcceptConnection), so this callback
	// only feeds metrics.
	onSecurity := func(ip, detail string) {
		reason := "suspicious-threshold"
		if strings.HasPrefix(detail, "connection flood") {
			reason = "hard-block"
		}
		collector.IncBlocked(reason)
	}

	onAudit := func(level, event, endpoint, sessionID, ip string, details map[string]any) {
		auditLog.Record(audit.Level(level), event, endpoint, sessionID, ip, details)
		if level == "SECURITY" {
			collector.IncSecurityEvent()
		}
	}

	return session.NewEngine(session.EngineConfig{
		Logger:        logger,
		Relay:         session.NewRelayCredentialMinter(relayCfg),
		Cipher:        cipher,
		AbuseGuard:    session.NewAbuseGuard(onSecurity),
		ConnLimiter:   session.NewConnectionLimiter(),
		UploadLimiter: session.NewUploadInitLimiter(),
		JoinLimiter:   session.NewJoinRoomLimiter(),
		OnAudit:       onAudit,
	})
}

// runServers starts the Boundary Adapter, the metrics endpoint, and the
// Sweeper under a signal-aware errgroup, so any one of them exiting
// triggers an orderly shutdown of the rest.
func runServers(cfg *config.Config, srv *server.Server, sweeper *session.Sweeper, metricsSrv *http.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("boundary adapter listening", slog.String("addr", ":"+cfg.Server.Port))
		return srv.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServeMetrics(gCtx, metricsSrv)
	})

	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, srv, metricsSrv, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

func gracefulShutdown(ctx context.Context, srv *server.Server, metricsSrv *http.Server, logger *slog.Logger) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown boundary adapter: %w", err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown metrics server: %w", err))
	}
	return shutdownErr
}

func listenAndServeMetrics(ctx context.Context, srv *http.Server) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", srv.Addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
