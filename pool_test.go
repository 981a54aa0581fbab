package petalpress

import (
	"context"
	"testing"
	"time"
)

func TestViewerPoolIsolatesSessions(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Spring Gala", "Winter Ball")
	pool := newViewerPool(store, ViewerConfig{RetryBaseDelay: time.Millisecond}, time.Minute, testLogger())

	a := pool.get(context.Background(), "visitor-a")
	b := pool.get(context.Background(), "visitor-b")
	if a == b {
		t.Fatal("two sessions share one viewer")
	}

	a.SearchNow("spring")
	if got := b.Page().Query; got != "" {
		t.Fatalf("search leaked between sessions: %q", got)
	}
}

func TestViewerPoolReusesSession(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Only")
	pool := newViewerPool(store, ViewerConfig{RetryBaseDelay: time.Millisecond}, time.Minute, testLogger())

	first := pool.get(context.Background(), "visitor-a")
	again := pool.get(context.Background(), "visitor-a")
	if first != again {
		t.Fatal("same session produced a new viewer")
	}
	if state := first.Page().State; state != ViewerReady {
		t.Fatalf("state = %v after initial load, want ready", state)
	}
}

func TestViewerPoolRefreshAll(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Original")
	pool := newViewerPool(store, ViewerConfig{RetryBaseDelay: time.Millisecond}, time.Minute, testLogger())

	v := pool.get(context.Background(), "visitor-a")
	if got := v.Page().Total; got != 1 {
		t.Fatalf("Total = %d, want 1", got)
	}

	seedPosts(t, store, "Added later")
	pool.refreshAll(context.Background())
	if got := v.Page().Total; got != 2 {
		t.Fatalf("Total = %d after refreshAll, want 2", got)
	}
}
