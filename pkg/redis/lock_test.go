package redis

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: make(map[string]string)}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, held := f.values[key]; held {
		return false, nil
	}
	f.values[key] = fmt.Sprint(value)
	return true, nil
}

// Eval emulates the compare-and-delete script: the key is removed only when
// its value matches the caller's owner token.
func (f *fakeLockStore) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	if len(keys) != 1 || len(args) != 1 {
		return nil, fmt.Errorf("unexpected eval call: %d keys, %d args", len(keys), len(args))
	}
	if f.values[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.values, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func TestLockAcquireIsExclusive(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()

	first, err := NewLock(store, "sf:lock:checkout:owner", time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	second, err := NewLock(store, "sf:lock:checkout:owner", time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("second acquire succeeded while the lock was held")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestLockReleaseLeavesNewHoldersLock(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()

	stale, err := NewLock(store, "sf:lock:checkout:owner", time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := stale.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// The TTL expires and another process takes the lock.
	delete(store.values, "sf:lock:checkout:owner")
	current, err := NewLock(store, "sf:lock:checkout:owner", time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := current.Acquire(ctx); err != nil || !ok {
		t.Fatalf("reacquire: ok=%v err=%v", ok, err)
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values["sf:lock:checkout:owner"]; !held {
		t.Fatalf("stale holder's release deleted the new holder's lock")
	}
}

func TestLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewLock(store, "sf:lock:checkout:owner", time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without acquire: %v", err)
	}
}
