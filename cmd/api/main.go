package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"social-autopilot/internal/browser"
	"social-autopilot/internal/config"
	"social-autopilot/internal/kafka"
	"social-autopilot/internal/logging"
	"social-autopilot/internal/metrics"
	"social-autopilot/internal/orchestrator"
	"social-autopilot/internal/queue"
	"social-autopilot/internal/replier"
	"social-autopilot/internal/store"
	"social-autopilot/internal/tasks"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = io.WriteString(os.Stderr, "invalid logging config: "+err.Error()+"\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m := metrics.New(nil)

	q := queue.New()
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := q.Seed(seed.VideosToMonitor, seed.Uploads()); err != nil {
		return err
	}
	if n, u := q.Len(); n+u > 0 {
		logger.Info("queues seeded", zap.Int("monitor", n), zap.Int("upload", u))
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	var replied store.RepliedStore
	if cfg.RedisAddr != "" {
		rs := store.NewRedisRepliedStore(cfg.RedisAddr, cfg.RedisKeyNS, cfg.RedisTTL)
		closers = append(closers, rs)
		replied = rs
	} else {
		replied = store.OpenFileRepliedStore(cfg.RepliedFile, logger)
	}

	var events kafka.EventPublisher = kafka.NopPublisher{}
	if cfg.KafkaBroker != "" {
		prod := kafka.NewProducer(cfg.KafkaBroker, cfg.KafkaActivityTopic, cfg.KafkaFailureTopic)
		closers = append(closers, prod)
		events = prod
	}

	runner := tasks.NewRunner(tasks.Options{
		BaseURL:     cfg.Browser.BaseURL,
		ScrollTimes: cfg.Browser.ScrollTimes,
		Pacer:       browser.Pacer{Min: cfg.Browser.DelayMin, Max: cfg.Browser.DelayMax},
		Replier:     replier.NewClient(cfg.Replier, m, logger),
		Replied:     replied,
		Events:      events,
		Metrics:     m,
		Logger:      logger,
	})

	sessions := store.NewFileSessionStore(cfg.SessionFile, logger)
	orch := orchestrator.New(orchestrator.Options{
		Queue:          q,
		Runner:         runner,
		Store:          sessions,
		Launcher:       browser.NewRodLauncher(cfg.Browser, logger),
		Metrics:        m,
		Logger:         logger,
		PollInterval:   cfg.Loop.PollInterval,
		PollJitter:     cfg.Loop.PollJitter,
		SaveEvery:      cfg.Loop.SaveEvery,
		Headless:       cfg.Browser.Headless,
		BaseURL:        cfg.Browser.BaseURL,
		LandingPattern: cfg.Login.LandingPattern,
		VerifyTimeout:  cfg.Login.VerifyTimeout,
		LoginTimeout:   cfg.Login.Timeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(q, orch, m, logger)
	httpServer := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if sessions.Exists(ctx) {
		logger.Info("stored session found, starting bot", zap.String("path", sessions.Path()))
		orch.Start(ctx)
	} else {
		logger.Info("no stored session, call GET /login to sign in", zap.String("path", sessions.Path()))
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown", zap.Error(err))
	}
	return serveErr
}
