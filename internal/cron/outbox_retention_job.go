package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	outboxDeleteBatch      = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPruner interface {
	DeletePublishedBefore(dbc dbctx.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository publishedPruner
	Retention  time.Duration
	BatchSize  int
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      publishedPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

// NewOutboxRetentionJob builds the job that deletes published outbox rows
// older than Retention, one short transaction per batch. Rows still waiting
// to be published are never removed.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      p.Logger,
		db:        p.DB,
		repo:      p.Repository,
		retention: p.Retention,
		batch:     p.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = outboxDeleteBatch
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	total, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention after %d rows: %w", total, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": total,
	}), "cron.outbox_retention.done")
	return nil
}

// prune deletes batches until one comes back short.
func (j *outboxRetentionJob) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
			n, err = j.repo.DeletePublishedBefore(dbctx.New(ctx, tx), cutoff, j.batch)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			return total, nil
		}
	}
}
