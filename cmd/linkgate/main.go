package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"linkgate/internal/api"
	"linkgate/internal/classifier"
	"linkgate/internal/config"
	"linkgate/internal/events"
	"linkgate/internal/gate"
	"linkgate/internal/geoip"
	"linkgate/internal/logger"
	"linkgate/internal/models"
	"linkgate/internal/observability"
	"linkgate/internal/proof"
	"linkgate/internal/ratelimit"
	"linkgate/internal/session"
	"linkgate/internal/store"
	"linkgate/internal/token"
	"linkgate/internal/version"
)

var (
	app          = kingpin.New("linkgate", "Edge gate that admits humans to a protected link and turns automated clients away.")
	configFile   = app.Flag("config", "Path to configuration file.").Short('c').Envar("LINKGATE_CONFIG").String()
	checkConfig  = app.Flag("check-config", "Load and validate the configuration, then exit.").Bool()
	writeExample = app.Flag("write-example", "Write an example configuration file to the given path and exit.").PlaceHolder("PATH").String()
	showVersion  = app.Flag("version", "Print version information and exit.").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	ver := version.GetInfo()

	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *writeExample != "" {
		if err := config.SaveExample(*writeExample); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *writeExample)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *checkConfig {
		fmt.Println("Configuration OK")
		return
	}

	if err := run(cfg, ver); err != nil {
		slog.Error("Gate stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *models.Config, ver version.Info) error {
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	otelProvider, err := observability.Setup(cfg, ver)
	if err != nil {
		return fmt.Errorf("initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	backend, err := store.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer backend.Close()

	var activeStore store.Store = backend
	if cfg.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		instrumented, err := otelProvider.InstrumentStore(backend)
		if err != nil {
			return fmt.Errorf("instrument storage: %w", err)
		}
		activeStore = instrumented
	}

	rules, err := classifier.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("initialize classifier: %w", err)
	}

	resolver, err := geoip.Open(cfg.GeoIP)
	if err != nil {
		return fmt.Errorf("open geoip databases: %w", err)
	}
	defer resolver.Close()

	tokens, err := token.NewService([]byte(cfg.Gate.Secret))
	if err != nil {
		return fmt.Errorf("initialize token service: %w", err)
	}

	engine := proof.NewEngine(tokens, activeStore, cfg.Proof, log)
	sessions := session.New(tokens, cfg.Session)

	notifier, closeNotifier := buildNotifier(cfg.Webhook, log)
	defer closeNotifier.Close()

	gateOpts := []gate.Option{
		gate.WithNotifier(notifier),
		gate.WithLogger(log),
	}

	if cfg.RateLimit.Enabled {
		limiter := buildLimiter(cfg, activeStore)
		defer limiter.Close()
		gateOpts = append(gateOpts, gate.WithLimiter(limiter))
	}

	if cfg.Metrics.Enabled {
		metrics, err := otelProvider.GateMetrics()
		if err != nil {
			return fmt.Errorf("register gate metrics: %w", err)
		}
		gateOpts = append(gateOpts, gate.WithRecorder(metrics))
	}

	service := gate.NewService(*cfg, rules, engine, tokens, sessions, activeStore, gateOpts...)

	handlers, err := api.NewHandlers(service, cfg,
		api.WithStorage(activeStore),
		api.WithGeoIP(resolver),
		api.WithVersion(ver.Version),
	)
	if err != nil {
		return fmt.Errorf("initialize handlers: %w", err)
	}

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, routeOpts...)

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting gate",
			"addr", server.Addr,
			"tls", cfg.Server.TLSEnabled,
			"storage", cfg.Storage.Type,
			"difficulty", cfg.Proof.Difficulty,
			"geoip", resolver.Enabled(),
		)
		if cfg.Server.TLSEnabled {
			serverErr <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErr <- server.ListenAndServe()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	slog.Info("Shutting down gate")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Gate shutdown complete")
	return nil
}

// buildLimiter keeps rate windows in process for the memory backend and in
// the shared store otherwise, so every replica counts against the same window.
func buildLimiter(cfg *models.Config, s store.Store) ratelimit.Limiter {
	rl := cfg.RateLimit
	if cfg.Storage.Type == models.StorageTypeMemory {
		return ratelimit.NewMemoryLimiter(rl.MaxRequests, rl.Window, rl.CleanupInterval)
	}
	return ratelimit.NewStoreLimiter(s, rl.MaxRequests, rl.Window)
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// buildNotifier always logs events and additionally posts them to the
// webhook when one is configured. The returned closer drains the webhook queue.
func buildNotifier(cfg models.WebhookConfig, log *slog.Logger) (events.Notifier, io.Closer) {
	logNotifier := events.NewLogNotifier(log)
	if !cfg.Enabled {
		return logNotifier, closerFunc(func() {})
	}
	webhook := events.NewWebhookNotifier(cfg, log)
	return events.Multi{logNotifier, webhook}, closerFunc(webhook.Close)
}
