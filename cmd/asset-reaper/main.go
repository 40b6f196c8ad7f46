package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ledgerly-backend/internal/assets"
	"github.com/angelmondragon/ledgerly-backend/internal/bootstrap"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/idempotency"
)

func main() {
	proc, err := bootstrap.Start("asset-reaper")
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
	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	store, err := proc.Storage(ctx)
	if err != nil {
		return err
	}
	bus, err := proc.PubSub(ctx)
	if err != nil {
		return err
	}

	guard, err := idempotency.NewManager(redisClient, proc.Config.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	reaper, err := assets.NewReaper(
		store,
		guard,
		bus.AssetsSubscription(),
		proc.Logger,
		metrics.NewSigningMetrics(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return err
	}

	proc.Logger.Info(ctx, "asset reaper started")
	return reaper.Run(ctx)
}
