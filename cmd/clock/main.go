package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/transferd/internal/config"
	"github.com/edvin/transferd/internal/core"
	"github.com/edvin/transferd/internal/db"
	"github.com/edvin/transferd/internal/logging"
	"github.com/edvin/transferd/internal/metrics"
	"github.com/edvin/transferd/internal/runtime"
)

const (
	workerInterval   = time.Minute
	metricsInterval  = time.Minute
	scheduleInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("clock"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metrics.RegisterPgxPoolMetrics(pool)

	services := core.NewServices(pool)
	workerRuntime := runtime.NewProcessRuntime(logger, cfg.WorkerCommand, cfg.WorkerArgs)
	workerPool := core.NewWorkerPoolService(pool, workerRuntime, cfg.MinWorkers, cfg.MaxWorkers)
	manager := core.NewScheduleManager(core.NewScheduleResolver(pool), core.NewScheduleProcessor(pool))

	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)
	go func() {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return everyTick(gctx, logger, "top-off-workers", workerInterval, func(tickCtx context.Context, _ time.Time) error {
			adjusted, err := workerPool.CheckWorkers(tickCtx)
			if err != nil {
				return err
			}
			switch {
			case adjusted > 0:
				metrics.WorkerAdjustments.WithLabelValues("launch").Add(float64(adjusted))
			case adjusted < 0:
				metrics.WorkerAdjustments.WithLabelValues("terminate").Add(float64(-adjusted))
			}
			return nil
		})
	})

	g.Go(func() error {
		return everyTick(gctx, logger, "log-metrics", metricsInterval, func(tickCtx context.Context, _ time.Time) error {
			pending, inProgress, err := services.Transfer.Counts(tickCtx)
			if err != nil {
				return err
			}
			metrics.PendingTransfers.Set(float64(pending))
			metrics.InProgressTransfers.Set(float64(inProgress))
			logger.Info().
				Int("pending_xfer_count", pending).
				Int("active_xfer_count", inProgress).
				Msg("transfer demand sample")
			return nil
		})
	})

	g.Go(func() error {
		return everyTick(gctx, logger, "run-scheduled-transfers", scheduleInterval, func(tickCtx context.Context, now time.Time) error {
			result, err := manager.RunSchedules(tickCtx, now)
			if err != nil {
				return err
			}
			metrics.ScheduledTransfersCreated.Add(float64(len(result.Created)))
			metrics.ScheduleFailures.Add(float64(len(result.Failures)))
			for _, f := range result.Failures {
				logger.Warn().Str("schedule_id", f.ScheduleID).Err(f.Err).Msg("schedule processing failed")
			}
			logger.Info().
				Int("created", len(result.Created)).
				Int("failed", len(result.Failures)).
				Time("scheduled_for", now).
				Msg("resolution pass finished")
			return nil
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down")
		cancel()
	}()

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("clock loop failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
}

// everyTick runs task once per interval until the context is canceled.
// Task errors are logged and retried on the next tick; ticks never
// overlap within one loop.
func everyTick(ctx context.Context, logger zerolog.Logger, name string, interval time.Duration, task func(ctx context.Context, now time.Time) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := task(ctx, now); err != nil {
				logger.Error().Str("task", name).Err(err).Msg("tick failed")
			}
		}
	}
}
