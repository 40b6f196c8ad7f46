package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
)

func TestOutboxRetentionJobDeletesUntilShortBatch(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakePruner{results: []int64{3, 3, 1}}
	job := newOutboxRetentionJob(t, repo, 3)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-defaultOutboxRetention)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 3 {
		t.Fatalf("expected 3 batches, got %d", repo.called)
	}
	if !repo.sawTx {
		t.Fatal("expected deletes to run inside a transaction")
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakePruner{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobStopsWhenCancelled(t *testing.T) {
	repo := &fakePruner{results: []int64{3, 3, 3, 3}}
	job := newOutboxRetentionJob(t, repo, 3)
	ctx, cancel := context.WithCancel(context.Background())
	repo.afterCall = func() {
		if repo.called == 2 {
			cancel()
		}
	}

	err := job.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if repo.called != 2 {
		t.Fatalf("expected 2 batches before stopping, got %d", repo.called)
	}
}

func newOutboxRetentionJob(t *testing.T, repo *fakePruner, batch int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         fakeTxRunner{},
		Repository: repo,
		BatchSize:  batch,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakePruner struct {
	lastCutoff time.Time
	called     int
	results    []int64
	sawTx      bool
	err        error
	afterCall  func()
}

func (f *fakePruner) DeletePublishedBefore(dbc dbctx.Context, cutoff time.Time, limit int) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	f.sawTx = f.sawTx || dbc.InTx()
	if f.afterCall != nil {
		defer f.afterCall()
	}
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

// fakeTxRunner hands the callback a bare session so dbctx reports a
// transaction without a database.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}
