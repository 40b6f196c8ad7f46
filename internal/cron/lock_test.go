package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "ldg:cron_lock:test", 0, "worker-1")
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "ldg:cron_lock:test", time.Minute, "worker-2")
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(store.values["ldg:cron_lock:test"], "worker-1/") {
		t.Fatalf("lock value should name the holder, got %q", store.values["ldg:cron_lock:test"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second holder acquired a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, held := store.values["ldg:cron_lock:test"]; !held {
		t.Fatal("non-holder released the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock not free after release")
	}
}

func TestRedisLockStaleHolderCannotReleaseSuccessor(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	ctx := context.Background()
	first, _ := NewRedisLock(store, "k", time.Minute, "worker-1")
	second, _ := NewRedisLock(store, "k", time.Minute, "worker-2")

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}
	delete(store.values, "k") // ttl elapsed
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("second acquire failed")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !strings.HasPrefix(store.values["k"], "worker-2/") {
		t.Fatal("stale holder removed the successor's lock")
	}
}

func TestRedisLockRejectsReentry(t *testing.T) {
	lock, _ := NewRedisLock(&memoryRedis{values: map[string]string{}}, "k", time.Minute, "")
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if _, err := lock.Acquire(ctx); err == nil {
		t.Fatal("expected reentrant acquire to fail")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0, ""); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(&memoryRedis{}, "", 0, ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
