package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vytor/ceplayer/internal/api"
	"github.com/vytor/ceplayer/internal/config"
	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/jobs"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/metrics"
	"github.com/vytor/ceplayer/internal/player"
	"github.com/vytor/ceplayer/internal/scheduler"
	"github.com/vytor/ceplayer/internal/services"
	"github.com/vytor/ceplayer/internal/sse"
	"github.com/vytor/ceplayer/internal/worker"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serve(ctx context.Context, cfg config.Config) error {
	log := logger.Default()

	log.Info("===========================================")
	log.Info("CE Player Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("store_backend=%s", cfg.StoreBackend)
	log.Debug("content_dir=%s", cfg.ContentDir)
	log.Debug("course_file=%s", cfg.CourseFile)
	log.Debug("minimum_seconds_per_hour=%d", cfg.MinimumSecondsPerHour)
	log.Debug("governor_buffer_bp=%d auto_advance_buffer_bp=%d", cfg.GovernorBufferBP, cfg.AutoAdvanceBufferBP)
	log.Debug("tick_interval=%v idle_timeout=%v", cfg.TickInterval, cfg.IdleTimeout)
	log.Debug("telemetry_exporter=%s", cfg.TelemetryExporter)
	if cfg.DevModeAvailable {
		log.Warn("developer mode is available: learners can bypass minimum block times")
	}

	store, readyChecks, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Debug("closing store")
		if err := store.Close(); err != nil {
			log.Error("failed to close store: %v", err)
		}
	}()

	outline, err := loadOutline(cfg)
	if err != nil {
		return err
	}
	source := content.NewSource(cfg.ContentDir, outline)

	shutdownTelemetry, err := metrics.Setup(cfg.TelemetryExporter, cfg.TelemetryInterval, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Error("failed to flush telemetry: %v", err)
		}
	}()
	rec, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	loop := scheduler.NewLoop(clock, 100*time.Millisecond)
	hub := sse.NewHub()
	players := player.NewRegistry(player.RegistryConfig{
		Scheduler: loop,
		Source:    source,
		Ledgers:   store.Ledgers(),
		Clock:     clock,
		Metrics:   rec,
		Publisher: hub,
		Namespace: cfg.Namespace,
		Player: player.Config{
			Buffers:          cfg.Buffers(),
			TickInterval:     cfg.TickInterval,
			MinimumSeconds:   cfg.MinimumSecondsPerHour,
			DevModeAvailable: cfg.DevModeAvailable,
			IdleTimeout:      cfg.IdleTimeout,
		},
	})

	srv := &api.Server{
		Learners:    services.NewLearnerService(store.Learners(), clock),
		Players:     players,
		Source:      source,
		Hub:         hub,
		ContentDir:  cfg.ContentDir,
		ReadyChecks: readyChecks,
	}
	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Routes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return players.Run(gctx)
	})

	pool := worker.NewPool(cfg.WarmWorkerCount, cfg.WarmQueueSize)
	pool.Start(gctx)
	queue := jobs.NewWorkerQueue(pool, source)
	g.Go(func() error {
		if err := queue.EnqueueWarmAll(gctx); err != nil {
			log.Warn("manifest warm-up interrupted: %v", err)
		}
		return nil
	})

	if watcher, err := content.NewWatcher(source); err != nil {
		log.Warn("content changes will not be picked up without a restart: %v", err)
	} else {
		watcher.OnInvalidate = func(path string) {
			if err := queue.EnqueueForPath(gctx, path); err != nil {
				log.Debug("could not re-warm after change to %s: %v", path, err)
			}
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Event streams only end when their clients go, so drop them before Shutdown waits.
		hub.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	err = g.Wait()

	pool.Stop()
	done, failed := pool.Stats()
	log.Info("content jobs: %d loaded, %d failed", done, failed)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	players.CloseAll(closeCtx)

	log.Info("===========================================")
	log.Info("CE Player Server Stopped")
	log.Info("===========================================")
	return err
}
