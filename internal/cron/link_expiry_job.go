package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

const (
	linkExpiryBatch      = 200
	linkExpiryMaxBatches = 50
)

type linkSweeper interface {
	Sweep(ctx context.Context, now time.Time, batch int) (int, error)
}

type LinkExpiryJobParams struct {
	Logger     *logger.Logger
	Sweeper    linkSweeper
	BatchSize  int
	MaxBatches int
}

// NewLinkExpiryJob moves overdue pending signing links to expired.
func NewLinkExpiryJob(params LinkExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("link sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = linkExpiryBatch
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = linkExpiryMaxBatches
	}
	return &linkExpiryJob{
		logg:       params.Logger,
		sweeper:    params.Sweeper,
		batch:      batch,
		maxBatches: maxBatches,
		now:        time.Now,
	}, nil
}

type linkExpiryJob struct {
	logg       *logger.Logger
	sweeper    linkSweeper
	batch      int
	maxBatches int
	now        func() time.Time
}

func (j *linkExpiryJob) Name() string { return "link-expiry-sweep" }

// Run sweeps in batches until a batch comes back short or the per-run cap
// is reached; the remainder waits for the next cycle.
func (j *linkExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	batches := 0
	for batches < j.maxBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.sweeper.Sweep(ctx, now, j.batch)
		if err != nil {
			return fmt.Errorf("link expiry sweep: %w", err)
		}
		batches++
		total += n
		if n < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"links_expired": total,
		"batches":       batches,
	})
	j.logg.Info(logCtx, "link expiry sweep complete")
	return nil
}
