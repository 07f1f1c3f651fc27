package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/suppchat/backend/internal/domain"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(t *testing.T) (*MemoryCache, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache()
	cache.now = clock.Now
	t.Cleanup(func() { cache.Close() })
	return cache, clock
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache, clock := newTestCache(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value []byte
		ttl   time.Duration
	}{
		{name: "store and retrieve text", key: "catalog:context", value: []byte("- Magnésium (magnesium): 19.90 EUR"), ttl: time.Hour},
		{name: "store and retrieve json", key: "enrichment:zinc", value: []byte(`{"benefits":["immunité"]}`), ttl: 4 * time.Hour},
		{name: "store marker", key: "enrichment-throttled:zinc", value: []byte("1"), ttl: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.key, tt.value, tt.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != string(tt.value) {
				t.Errorf("Get() = %q, want %q", got, tt.value)
			}
		})
	}

	t.Run("expires at ttl", func(t *testing.T) {
		if err := cache.Set(ctx, "short", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		clock.Advance(59 * time.Second)
		if _, err := cache.Get(ctx, "short"); err != nil {
			t.Errorf("Get() before expiry error = %v", err)
		}
		clock.Advance(time.Second)
		if _, err := cache.Get(ctx, "short"); !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Get() at expiry error = %v, want %v", err, domain.ErrCacheMiss)
		}
	})
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	value := []byte("original")
	if err := cache.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, _ := cache.Get(ctx, "k")
	got[1] = 'Y'

	again, _ := cache.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("Get() = %q, want %q", again, "original")
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get(context.Background(), "non-existent-key")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	if _, err := cache.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"catalog:context", "catalog:snapshot", "enrichment:zinc"} {
		if err := cache.Set(ctx, key, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if err := cache.DeleteByPrefix(ctx, "catalog:"); err != nil {
		t.Fatalf("DeleteByPrefix() error = %v", err)
	}

	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}
	if _, err := cache.Get(ctx, "enrichment:zinc"); err != nil {
		t.Errorf("Get(enrichment:zinc) error = %v", err)
	}
}

func TestMemoryCache_RemoveExpired(t *testing.T) {
	cache, clock := newTestCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "short", []byte("v"), time.Minute)
	_ = cache.Set(ctx, "long", []byte("v"), time.Hour)

	clock.Advance(2 * time.Minute)
	cache.removeExpired()

	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1 after cleanup", size)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := cache.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Fatalf("Size() = %d, want 5 before clear", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", id)
			if err := cache.Set(ctx, key, []byte(key), time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			if _, err := cache.Get(ctx, key); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			_ = cache.DeleteByPrefix(ctx, "none:")
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache()
	if err := cache.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
