package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/equine-appointment-scheduling/internal/config"
	"github.com/hackgods/equine-appointment-scheduling/internal/db"
	"github.com/hackgods/equine-appointment-scheduling/internal/logging"
	redisclient "github.com/hackgods/equine-appointment-scheduling/internal/redis"
)

func main() {
	logger := logging.New("prod", "info", "reconcile-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger = logging.New(cfg.Env, cfg.LogLevel, "reconcile-worker")
	logger.Info().Str("schedule", cfg.ReconcileSchedule).Msg("reconcile-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// elapse never moves a slot, so the sweep needs no cross-process lock.
	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReconcileTimeout, logger)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		runOnce(rootCtx, svc, cfg.ReconcileTimeout, logger)
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid reconcile schedule")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping reconcile worker")

	// Wait for a sweep in flight.
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *appointment.Service, timeout time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	n, err := svc.ReconcileStale(runCtx, nil)
	if err != nil {
		logger.Error().Err(err).Int("transitioned", n).Msg("reconcile run error")
		return
	}
	logger.Info().Int("transitioned", n).Dur("took", time.Since(start)).Msg("reconcile run complete")
}

// cronLogger routes the scheduler's own messages through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
