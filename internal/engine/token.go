package engine

import (
	"context"
	"sync"
	"time"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

// FetchTokenFunc obtains a fresh provider token.
type FetchTokenFunc func(ctx context.Context) (string, error)

// TokenCache holds the one provider token shared by every subscriber and
// refreshes it lazily when expired.
//
// The mutex is held across the refresh call, so concurrent Get() callers
// against an expired cache serialize behind a single provider fetch; the
// losers re-check freshness after the winner commits and return the same
// token without further I/O.
type TokenCache struct {
	fetch FetchTokenFunc
	store storage.Store // may be nil
	ttl   time.Duration
	log   logx.Logger
	now   func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache(fetch FetchTokenFunc, store storage.Store, ttl time.Duration, log logx.Logger) *TokenCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TokenCache{
		fetch: fetch,
		store: store,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// Hydrate restores a persisted credential so a restart inside the TTL
// window doesn't burn a provider call.
func (c *TokenCache) Hydrate(ctx context.Context) {
	if c.store == nil {
		return
	}
	token, exp, ok, err := c.store.GetCredential(ctx)
	if err != nil {
		c.log.Warn("credential hydrate failed", logx.Err(err))
		return
	}
	if !ok || token == "" {
		return
	}
	c.mu.Lock()
	c.token = token
	c.expiresAt = exp
	c.mu.Unlock()
	if exp.After(c.now()) {
		c.log.Info("credential restored", logx.Time("expires_at", exp))
	}
}

// Get returns a valid token, refreshing it when expired or absent.
// On refresh failure the stale entry is left untouched and the error is
// returned; callers back off and retry.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.expiresAt.After(c.now()) {
		return c.token, nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiresAt = c.now().Add(c.ttl)

	if c.store != nil {
		if err := c.store.PutCredential(ctx, token, c.expiresAt); err != nil {
			c.log.Warn("credential persist failed", logx.Err(err))
		}
	}
	c.log.Info("credential refreshed", logx.Time("expires_at", c.expiresAt))
	return token, nil
}
