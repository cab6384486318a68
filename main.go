package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/carmatch/internal/api"
	"github.com/varsilias/carmatch/internal/buildinfo"
	"github.com/varsilias/carmatch/internal/config"
	"github.com/varsilias/carmatch/internal/coze"
	"github.com/varsilias/carmatch/internal/logging"
	"github.com/varsilias/carmatch/internal/middleware"
	"github.com/varsilias/carmatch/internal/relay"
	"github.com/varsilias/carmatch/internal/session"
	"github.com/varsilias/carmatch/internal/ui"
)

func main() {
	configPath := flag.String("config", os.Getenv("CARMATCH_CONFIG"), "optional config file (yaml/json/toml)")
	addr := flag.String("addr", "", "HTTP listen address (overrides ADDR)")
	level := flag.String("log-level", "", "log level: debug|info|warn|error (overrides LOG_LEVEL)")
	json := flag.Bool("log-json", false, "log as JSON (overrides LOG_JSON)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("error", false).Error("load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *json {
		cfg.LogJSON = true
	}

	logger := logging.New(cfg.LogLevel, cfg.LogJSON)
	logger.Info("build", "version", buildinfo.Version, "commit", buildinfo.Commit, "built_at", buildinfo.BuiltAt)
	logger.Info("carmatch server is listening", "addr", cfg.ListenAddr(), "upstream", cfg.Coze.URL)

	cozeClient := coze.NewClient(coze.Config{
		URL:       cfg.Coze.URL,
		Token:     cfg.Coze.Token,
		ProjectID: cfg.Coze.ProjectID,
	}, logger)
	if err := cozeClient.Check(); err != nil {
		// keep serving: every chat request reports the problem
		logger.Warn("upstream not configured; chat requests will fail", "err", err)
	}

	sessionStore := session.NewMemoryStore()
	rl := relay.New(cozeClient, logger,
		relay.WithIdleTimeout(cfg.Coze.IdleTimeout),
		relay.WithRecorder(sessionStore),
	)

	uih, err := ui.New(logger, sessionStore)
	if err != nil {
		logger.Error("ui init", "err", err)
		os.Exit(1)
	}

	h := api.NewHandlers(logger, rl, sessionStore)
	mux := chi.NewRouter()
	ui.RegisterRoutes(mux, uih)
	api.RegisterRoutes(mux, h)

	server := http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.Chain(logger, mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: it would cut long answers mid-stream; the relay's
		// idle timeout bounds stalled upstreams instead
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	} else {
		logger.Info("server stopped")
	}
}
