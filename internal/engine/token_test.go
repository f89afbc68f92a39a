package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

func TestTokenCacheRefreshesOnlyWhenExpired(t *testing.T) {
	t.Parallel()

	var calls int
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	c := NewTokenCache(func(context.Context) (string, error) {
		calls++
		return fmt.Sprintf("tok-%d", calls), nil
	}, nil, time.Hour, logx.Logger{})
	c.now = func() time.Time { return now }

	ctx := context.Background()

	tok, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tok != "tok-1" || calls != 1 {
		t.Fatalf("got %q calls=%d, want tok-1 calls=1", tok, calls)
	}

	// Still inside the TTL window: no second fetch.
	now = now.Add(59 * time.Minute)
	tok, err = c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tok != "tok-1" || calls != 1 {
		t.Fatalf("got %q calls=%d, want cached tok-1", tok, calls)
	}

	// Past expiry: refresh.
	now = now.Add(2 * time.Minute)
	tok, err = c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tok != "tok-2" || calls != 2 {
		t.Fatalf("got %q calls=%d, want tok-2 calls=2", tok, calls)
	}
}

func TestTokenCacheSingleFlight(t *testing.T) {
	t.Parallel()

	var calls int32
	release := make(chan struct{})

	c := NewTokenCache(func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "tok", nil
	}, nil, time.Hour, logx.Logger{})

	const n = 8
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = c.Get(context.Background())
		}(i)
	}

	// Let the goroutines pile up behind the fetch, then let it finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Get[%d]: %v", i, errs[i])
		}
		if tokens[i] != "tok" {
			t.Fatalf("Get[%d] = %q, want tok", i, tokens[i])
		}
	}
}

func TestTokenCacheKeepsStaleOnFetchError(t *testing.T) {
	t.Parallel()

	var fail bool
	var calls int
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	c := NewTokenCache(func(context.Context) (string, error) {
		calls++
		if fail {
			return "", errors.New("upstream down")
		}
		return fmt.Sprintf("tok-%d", calls), nil
	}, nil, time.Hour, logx.Logger{})
	c.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = now.Add(2 * time.Hour)
	fail = true
	if _, err := c.Get(ctx); err == nil {
		t.Fatal("Get after expiry: want fetch error")
	}

	// Recovery path: next successful fetch installs a fresh token.
	fail = false
	tok, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tok != "tok-3" {
		t.Fatalf("got %q, want tok-3", tok)
	}
}

func TestTokenCacheHydrateAndPersist(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	first := NewTokenCache(func(context.Context) (string, error) {
		return "tok-a", nil
	}, store, time.Hour, logx.Logger{})
	first.now = func() time.Time { return now }
	if _, err := first.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A second cache over the same store must restore the credential and
	// not fetch while it is still valid.
	second := NewTokenCache(func(context.Context) (string, error) {
		return "", errors.New("should not fetch")
	}, store, time.Hour, logx.Logger{})
	second.now = func() time.Time { return now.Add(30 * time.Minute) }
	second.Hydrate(ctx)

	tok, err := second.Get(ctx)
	if err != nil {
		t.Fatalf("Get after hydrate: %v", err)
	}
	if tok != "tok-a" {
		t.Fatalf("got %q, want persisted tok-a", tok)
	}
}
