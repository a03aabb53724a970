package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_SetGet_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get = %q, want v1", got)
	}

	// Returned slice must be a copy; mutating it must not affect the store.
	got[0] = 'X'
	again, err := m.Get(ctx, "k")
	if err != nil || string(again) != "v1" {
		t.Fatalf("stored value aliased by caller: %q err=%v", again, err)
	}
}

func TestMemory_Get_MissAndExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for absent key, got %v", err)
	}

	// Pin the clock, write with a TTL, then step past the deadline.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before deadline: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after deadline, got %v", err)
	}
	// Lazy eviction: the entry should be gone now.
	m.mu.RLock()
	_, still := m.data["k"]
	m.mu.RUnlock()
	if still {
		t.Fatalf("expired entry was not evicted")
	}
}

func TestMemory_Set_ReplacesAndClearsDeadline(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if err := m.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Overwrite without TTL; the old deadline must not survive.
	if err := m.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	m.now = func() time.Time { return base.Add(time.Hour) }
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v2" {
		t.Fatalf("expected v2 without expiry, got %q err=%v", got, err)
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)

	if err := m.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("a should be gone, got %v", err)
	}
	if _, err := m.Get(ctx, "b"); err != nil {
		t.Fatalf("b should survive, got %v", err)
	}
}

func TestMemory_SetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	okFirst, err := m.SetNX(ctx, "k", []byte("first"), time.Minute)
	if err != nil || !okFirst {
		t.Fatalf("first SetNX = %v, %v; want true, nil", okFirst, err)
	}
	okSecond, err := m.SetNX(ctx, "k", []byte("second"), time.Minute)
	if err != nil || okSecond {
		t.Fatalf("second SetNX = %v, %v; want false, nil", okSecond, err)
	}
	got, _ := m.Get(ctx, "k")
	if string(got) != "first" {
		t.Fatalf("SetNX overwrote existing value: %q", got)
	}

	// Past-deadline entries count as absent.
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	okAfter, err := m.SetNX(ctx, "k", []byte("third"), time.Minute)
	if err != nil || !okAfter {
		t.Fatalf("SetNX after expiry = %v, %v; want true, nil", okAfter, err)
	}
	got, _ = m.Get(ctx, "k")
	if string(got) != "third" {
		t.Fatalf("expected third after expiry, got %q", got)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = m.Set(ctx, "shared", []byte("w"), time.Minute)
		}
	}()
	for i := 0; i < 200; i++ {
		if _, err := m.Get(ctx, "shared"); err != nil && !errors.Is(err, ErrMiss) {
			t.Fatalf("concurrent Get: %v", err)
		}
	}
	<-done
}
