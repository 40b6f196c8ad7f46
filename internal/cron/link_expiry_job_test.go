package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSweeper struct {
	results []int
	calls   int
	lastNow time.Time
	err     error
}

func (f *fakeSweeper) Sweep(_ context.Context, now time.Time, batch int) (int, error) {
	f.calls++
	f.lastNow = now
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

func newLinkExpiryJob(t *testing.T, sweeper *fakeSweeper, batch, maxBatches int) *linkExpiryJob {
	t.Helper()
	job, err := NewLinkExpiryJob(LinkExpiryJobParams{
		Logger:     testLogger(),
		Sweeper:    sweeper,
		BatchSize:  batch,
		MaxBatches: maxBatches,
	})
	if err != nil {
		t.Fatalf("NewLinkExpiryJob: %v", err)
	}
	return job.(*linkExpiryJob)
}

func TestLinkExpiryJobSweepsUntilShortBatch(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{results: []int{2, 2, 1, 2}}
	job := newLinkExpiryJob(t, sweeper, 2, 10)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 3 {
		t.Fatalf("expected 3 sweeps, got %d", sweeper.calls)
	}
	if !sweeper.lastNow.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, sweeper.lastNow)
	}
}

func TestLinkExpiryJobStopsAtBatchCap(t *testing.T) {
	sweeper := &fakeSweeper{results: []int{5, 5, 5, 5}}
	job := newLinkExpiryJob(t, sweeper, 5, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 2 {
		t.Fatalf("expected 2 sweeps, got %d", sweeper.calls)
	}
}

func TestLinkExpiryJobPropagatesError(t *testing.T) {
	job := newLinkExpiryJob(t, &fakeSweeper{err: errors.New("db down")}, 0, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
