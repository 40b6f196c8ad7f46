// Package storagetest provides an in-memory object store for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

// MemoryStore is a storage.Store kept in a map. Failures can be injected per
// operation to exercise compensation paths.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]storage.Object

	UploadErr   error
	DownloadErr error
	DeleteErr   error
	SignErr     error

	// DeleteErrFor fails Delete for specific paths only.
	DeleteErrFor map[string]error

	Deleted []string
}

var _ storage.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]storage.Object{}}
}

func (m *MemoryStore) Upload(_ context.Context, req storage.UploadRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	p, err := storage.ObjectPath(req.Category, req.OwnerID, req.Filename)
	if err != nil {
		return "", err
	}
	data := append([]byte(nil), req.Data...)
	m.objects[p] = storage.Object{Path: p, ContentType: req.ContentType, Data: data}
	return p, nil
}

func (m *MemoryStore) Download(_ context.Context, objectPath string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	obj, ok := m.objects[objectPath]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &obj, nil
}

func (m *MemoryStore) Delete(_ context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if err, ok := m.DeleteErrFor[objectPath]; ok {
		return err
	}
	if _, ok := m.objects[objectPath]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, objectPath)
	m.Deleted = append(m.Deleted, objectPath)
	return nil
}

func (m *MemoryStore) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	if m.SignErr != nil {
		return "", m.SignErr
	}
	return fmt.Sprintf("https://storage.test/%s?ttl=%d", objectPath, int64(ttl.Seconds())), nil
}

// Put seeds an object at an exact path.
func (m *MemoryStore) Put(objectPath, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectPath] = storage.Object{Path: objectPath, ContentType: contentType, Data: data}
}

// Has reports whether an object exists at objectPath.
func (m *MemoryStore) Has(objectPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectPath]
	return ok
}

// Paths lists stored object paths in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
