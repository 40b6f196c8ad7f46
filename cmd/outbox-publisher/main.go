package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ledgerly-backend/internal/bootstrap"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/registry"
)

func main() {
	var dlq dlqCommand
	flag.BoolVar(&dlq.list, "dlq-list", false, "print dead-lettered events and exit")
	flag.StringVar(&dlq.agreement, "dlq-agreement", "", "limit -dlq-list to one agreement id")
	flag.StringVar(&dlq.replay, "dlq-replay", "", "requeue the dead-lettered event with this id and exit")
	flag.Parse()

	proc, err := bootstrap.Start("outbox-publisher")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.RunContext()
	defer stop()

	err = run(ctx, proc, dlq)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	proc.Exit(ctx, err)
}

func run(ctx context.Context, proc *bootstrap.Process, dlq dlqCommand) error {
	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if dlq.requested() {
		return runDLQ(ctx, dlqRepo, dlq, os.Stdout)
	}

	bus, err := proc.PubSub(ctx)
	if err != nil {
		return err
	}
	routes, err := registry.NewEventRegistry(proc.Config.PubSub)
	if err != nil {
		return err
	}
	service, err := NewService(ServiceParams{
		Config:        proc.Config,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        bus,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      routes,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	proc.Logger.Info(ctx, "outbox publisher started")
	return service.Run(ctx)
}
