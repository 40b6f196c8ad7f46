package assets

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

// Saga keeps the object store consistent with one database transaction.
// Uploads made before the commit are removed when the transaction fails;
// deletions are deferred until it succeeds.
type Saga struct {
	store   storage.Store
	logg    *logger.Logger
	metrics *metrics.SigningMetrics

	mu       sync.Mutex
	uploaded []string
	pending  []string
}

func NewSaga(store storage.Store, logg *logger.Logger, m *metrics.SigningMetrics) *Saga {
	return &Saga{store: store, logg: logg, metrics: m}
}

// Upload stores the object and records it for compensation.
func (s *Saga) Upload(ctx context.Context, req storage.UploadRequest) (string, error) {
	objectPath, err := s.store.Upload(ctx, req)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.uploaded = append(s.uploaded, objectPath)
	s.mu.Unlock()
	return objectPath, nil
}

// DeleteAfterCommit schedules objectPath for removal once Commit runs.
func (s *Saga) DeleteAfterCommit(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			s.pending = append(s.pending, p)
		}
	}
}

// Compensate removes everything uploaded through the saga. Failures are
// logged and never returned; the asset reaper is the backstop.
func (s *Saga) Compensate(ctx context.Context) {
	s.mu.Lock()
	paths := s.uploaded
	s.uploaded = nil
	s.pending = nil
	s.mu.Unlock()

	if err := s.deleteAll(context.WithoutCancel(ctx), paths); err != nil {
		s.logg.Error(ctx, "asset compensation incomplete", err)
	}
}

// Commit applies the deferred deletions. Each path is attempted even when an
// earlier one fails. Per-path failures are logged here; the combined error
// is for the caller to report against its own operation.
func (s *Saga) Commit(ctx context.Context) error {
	s.mu.Lock()
	paths := s.pending
	s.pending = nil
	s.uploaded = nil
	s.mu.Unlock()

	return s.deleteAll(context.WithoutCancel(ctx), paths)
}

func (s *Saga) deleteAll(ctx context.Context, paths []string) error {
	var errs error
	for _, p := range paths {
		if err := DeleteObject(ctx, s.store, p); err != nil {
			s.metrics.IncSideEffectFailure(metrics.SideEffectAssetDelete)
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"object_path": p,
				"error":       err.Error(),
			}), "asset delete failed")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// DeleteObject removes objectPath, treating a missing object as deleted.
func DeleteObject(ctx context.Context, store storage.Store, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	if err := store.Delete(ctx, objectPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return nil
}
