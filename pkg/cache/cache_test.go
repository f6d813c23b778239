package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetLoadsOnceUnderConcurrency(t *testing.T) {
	c := New(Options{TTL: time.Minute})
	var loads int64

	loader := func(ctx context.Context, key string) (interface{}, bool, error) {
		atomic.AddInt64(&loads, 1)
		time.Sleep(10 * time.Millisecond)
		return "catalog", true, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, ok, err := c.Get(context.Background(), "clips", loader)
			if err != nil || !ok || val != "catalog" {
				t.Errorf("unexpected result: %v %v %v", val, ok, err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&loads); got != 1 {
		t.Fatalf("expected single load under concurrent misses, got %d", got)
	}
}

func TestGetReturnsLoaderError(t *testing.T) {
	c := New(Options{TTL: time.Minute})
	wantErr := fmt.Errorf("catalog unavailable")

	_, ok, err := c.Get(context.Background(), "clips", func(ctx context.Context, key string) (interface{}, bool, error) {
		return nil, false, wantErr
	})
	if ok {
		t.Fatal("expected miss")
	}
	if err != wantErr {
		t.Fatalf("expected loader error, got %v", err)
	}

	// Error was not cached: a later successful load works.
	val, ok, err := c.Get(context.Background(), "clips", func(ctx context.Context, key string) (interface{}, bool, error) {
		return 42, true, nil
	})
	if err != nil || !ok || val != 42 {
		t.Fatalf("expected fresh load after error, got %v %v %v", val, ok, err)
	}
}

func TestEvictionDropsOldestFirst(t *testing.T) {
	c := New(Options{TTL: time.Minute, MaxEntries: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", c.Len())
	}

	called := false
	_, _, _ = c.Get(context.Background(), "a", func(ctx context.Context, key string) (interface{}, bool, error) {
		called = true
		return nil, false, nil
	})
	if !called {
		t.Fatal("expected oldest entry to have been evicted")
	}
}
