package devpin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "user@example.com", "4821", DefaultTTL)

	pin, ok := store.Get(ctx, "user@example.com")
	if !ok {
		t.Fatal("Get should return pin after Put")
	}
	if pin != "4821" {
		t.Errorf("pin = %q, want %q", pin, "4821")
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "admin", "1111", DefaultTTL)
	store.Put(ctx, "admin", "2222", DefaultTTL)

	if pin, _ := store.Get(ctx, "admin"); pin != "2222" {
		t.Errorf("pin = %q, want %q", pin, "2222")
	}
}

func TestMemoryStore_Missing(t *testing.T) {
	pin, ok := NewMemoryStore().Get(context.Background(), "nobody")
	if ok || pin != "" {
		t.Errorf("Get missing = %q, %v; want \"\", false", pin, ok)
	}
}

func TestMemoryStore_ExpiredIsDropped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Put(ctx, "admin", "1111", time.Minute)
	now = now.Add(time.Minute)

	if _, ok := store.Get(ctx, "admin"); ok {
		t.Fatal("Get should return false at expiry")
	}
	store.mu.RLock()
	_, still := store.m["admin"]
	store.mu.RUnlock()
	if still {
		t.Error("expired entry should be removed")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			store.Put(ctx, id, "1234", DefaultTTL)
			if _, ok := store.Get(ctx, id); !ok {
				t.Errorf("Get(%s) missing after Put", id)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryStore_ExpiryUsesStoreClock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Put(ctx, "admin", "1111", 0)
	now = now.Add(DefaultTTL - time.Second)
	if pin, ok := store.Get(ctx, "admin"); !ok || pin != "1111" {
		t.Fatalf("Get before expiry = %q, %v; want %q, true", pin, ok, "1111")
	}
	now = now.Add(time.Second)
	if _, ok := store.Get(ctx, "admin"); ok {
		t.Error("Get at DefaultTTL should return false")
	}
}
