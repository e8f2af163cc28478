package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type bar struct {
	Symbol string
	Close  float64
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := []bar{{"AAPL", 190.5}, {"AAPL", 191.25}}
	if err := mc.Set(ctx, Key("bars", "AAPL", 2), in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []bar
	if err := mc.Get(ctx, "bars:AAPL:2", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 || out[1] != in[1] {
		t.Fatalf("got %+v", out)
	}

	// stored values are copies
	in[0].Close = 0
	out = nil
	_ = mc.Get(ctx, "bars:AAPL:2", &out)
	if out[0].Close != 190.5 {
		t.Fatalf("cache shares memory with caller")
	}

	if err := mc.Delete(ctx, "bars:AAPL:2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mc.Get(ctx, "bars:AAPL:2", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	_ = mc.Set(ctx, "k", 1, time.Minute)

	now = now.Add(2 * time.Minute)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Second); return now }

	_ = mc.Set(ctx, "a", 1, time.Hour)
	_ = mc.Set(ctx, "b", 2, time.Hour)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now more recent than b
	_ = mc.Set(ctx, "c", 3, time.Hour)

	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &v); err != nil || v != 1 {
		t.Fatalf("a should survive: %v %v", v, err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, _ := mc.TryLock(ctx, "lock:train:AAPL", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	ok, _ = mc.TryLock(ctx, "lock:train:AAPL", time.Minute)
	if ok {
		t.Fatalf("second lock should fail")
	}
	_ = mc.Unlock(ctx, "lock:train:AAPL")
	ok, _ = mc.TryLock(ctx, "lock:train:AAPL", time.Minute)
	if !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestMemoryCacheEvictionKeepsLocks(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(1))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Second); return now }

	if ok, _ := mc.TryLock(ctx, "train:AAPL", time.Hour); !ok {
		t.Fatalf("first lock should succeed")
	}
	// fill past capacity so eviction runs
	for _, k := range []string{"a", "b", "c"} {
		_ = mc.Set(ctx, k, 1, time.Hour)
	}
	if mc.Len() != 1 {
		t.Fatalf("len = %d, want 1", mc.Len())
	}
	if ok, _ := mc.TryLock(ctx, "train:AAPL", time.Hour); ok {
		t.Fatalf("held lock was evicted")
	}
}

func TestMemoryCacheLockExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	_, _ = mc.TryLock(ctx, "train:SPY", time.Minute)

	now = now.Add(2 * time.Minute)
	if ok, _ := mc.TryLock(ctx, "train:SPY", time.Minute); !ok {
		t.Fatalf("expired lock should be reacquired")
	}
}
