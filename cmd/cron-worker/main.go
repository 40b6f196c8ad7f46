package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ledgerly-backend/internal/bootstrap"
	"github.com/angelmondragon/ledgerly-backend/internal/cron"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
)

func main() {
	proc, err := bootstrap.Start("cron-worker")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.RunContext()
	defer stop()

	err = run(ctx, proc)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	proc.Exit(ctx, err)
}

func run(ctx context.Context, proc *bootstrap.Process) error {
	cfg := proc.Config
	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.CronLockKey(cfg.App.Env), cfg.Cron.LockTTL, proc.InstanceID())
	if err != nil {
		return err
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	expirer, err := signing.NewExpirer(
		signing.NewLinkRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outboxRepo, proc.Logger),
		proc.Logger,
		metrics.NewSigningMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return fmt.Errorf("link expirer: %w", err)
	}

	linkExpiry, err := cron.NewLinkExpiryJob(cron.LinkExpiryJobParams{
		Logger:    proc.Logger,
		Sweeper:   expirer,
		BatchSize: cfg.Signing.ExpirySweepBatch,
	})
	if err != nil {
		return err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     proc.Logger,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(linkExpiry, outboxRetention)
	if err != nil {
		return err
	}

	// A cycle gets nine tenths of the lock TTL; the rest covers release.
	service, err := cron.NewService(cron.ServiceParams{
		Logger:       proc.Logger,
		Registry:     jobs,
		Lock:         lock,
		Metrics:      metrics.NewCronMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		CycleTimeout: cfg.Cron.LockTTL * 9 / 10,
	})
	if err != nil {
		return err
	}

	proc.Logger.Info(ctx, "cron worker started")
	return service.Run(ctx)
}
