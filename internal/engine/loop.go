package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clipbot/internal/provider"
	logx "clipbot/pkg/logx"
)

// Source fetches candidate clips from the provider.
type Source interface {
	FetchTrending(ctx context.Context, token string, page, count int) ([]provider.Item, error)
	FetchByCreator(ctx context.Context, token, name, order string, count int) ([]provider.Item, error)
}

// Deliverer pushes one clip to one subscriber. Implementations own send
// pacing and transport-level escaping.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, mediaURL, creator string, following bool) error
}

// Config controls the distribution loop cadence.
type Config struct {
	PollInterval time.Duration // sleep between cycles
	ErrorBackoff time.Duration // sleep after a failed cycle
	PageSize     int           // items requested per provider query
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return c
}

// Engine is the distribution loop: each cycle it takes the shared token,
// snapshots active subscribers and dispatches per-mode fetch+send work,
// deduping every candidate against the global ledger.
type Engine struct {
	log     logx.Logger
	tokens  *TokenCache
	ledger  *Ledger
	states  *StateStore
	follows *Follows
	source  Source
	deliver Deliverer

	mu  sync.Mutex
	cfg Config
}

func New(cfg Config, tokens *TokenCache, ledger *Ledger, states *StateStore, follows *Follows, source Source, deliver Deliverer, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:     log,
		tokens:  tokens,
		ledger:  ledger,
		states:  states,
		follows: follows,
		source:  source,
		deliver: deliver,
		cfg:     cfg.withDefaults(),
	}
}

// Apply swaps loop cadence at runtime (config reload). Takes effect on the
// next cycle boundary.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Run executes cycles until ctx is canceled. It never returns a non-ctx
// error: a failed cycle is logged and retried after the error backoff.
// Intended to run under a supervisor (panics restart the loop).
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("distribution loop started")
	for {
		cfg := e.config()
		wait := cfg.PollInterval
		if err := e.cycle(ctx, cfg); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			e.log.Warn("cycle failed; backing off", logx.Err(err), logx.Duration("backoff", cfg.ErrorBackoff))
			wait = cfg.ErrorBackoff
		}
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

func (e *Engine) cycle(ctx context.Context, cfg Config) error {
	// One token per cycle, shared by every subscriber's queries.
	token, err := e.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	for chatID, st := range e.states.Snapshot() {
		if !st.Active {
			continue
		}
		switch st.Mode {
		case ModeTrending:
			e.runTrending(ctx, cfg, token, chatID)
		case ModeFollows:
			e.runFollows(ctx, cfg, token, chatID)
		case ModeCreator:
			if st.Creator != "" {
				e.runCreator(ctx, cfg, token, chatID, st.Creator)
			}
		default:
			// unknown or empty mode: nothing to do this cycle
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) runTrending(ctx context.Context, cfg Config, token string, chatID int64) {
	items, err := e.source.FetchTrending(ctx, token, 1, cfg.PageSize)
	if err != nil {
		e.log.Warn("trending fetch failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return
	}
	for _, it := range items {
		// Fresh read per item so an explicit stop lands quickly.
		if ctx.Err() != nil || !e.states.Active(chatID) {
			return
		}
		e.dispatch(ctx, chatID, it)
	}
}

// runFollows checks the stop flag once per creator, not per item: stopping
// mid-creator finishes that creator's batch. Coarser on purpose.
func (e *Engine) runFollows(ctx context.Context, cfg Config, token string, chatID int64) {
	for _, name := range e.follows.Names() {
		if ctx.Err() != nil || !e.states.Active(chatID) {
			return
		}
		items, err := e.source.FetchByCreator(ctx, token, name, "new", cfg.PageSize)
		if err != nil {
			e.log.Warn("creator fetch failed", logx.String("creator", name), logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		for _, it := range items {
			if ctx.Err() != nil {
				return
			}
			e.dispatch(ctx, chatID, it)
		}
	}
}

func (e *Engine) runCreator(ctx context.Context, cfg Config, token string, chatID int64, creator string) {
	items, err := e.source.FetchByCreator(ctx, token, creator, "new", cfg.PageSize)
	if err != nil {
		e.log.Warn("creator fetch failed", logx.String("creator", creator), logx.Int64("chat_id", chatID), logx.Err(err))
		return
	}
	for _, it := range items {
		if ctx.Err() != nil || !e.states.Active(chatID) {
			return
		}
		e.dispatch(ctx, chatID, it)
	}
}

// dispatch runs the shared per-candidate delivery step: normalize, dedup,
// send, record. A failed send skips the item, never the batch.
func (e *Engine) dispatch(ctx context.Context, chatID int64, it provider.Item) {
	mediaURL, ok := NormalizeMediaURL(it.HDURL)
	if !ok {
		e.log.Debug("item without usable media url", logx.String("creator", it.Creator))
		return
	}
	if e.ledger.Seen(mediaURL) {
		return
	}

	following := e.follows.Contains(it.Creator)
	if err := e.deliver.Deliver(ctx, chatID, mediaURL, it.Creator, following); err != nil {
		e.log.Warn("delivery failed", logx.Int64("chat_id", chatID), logx.String("url", mediaURL), logx.Err(err))
		return
	}

	if _, err := e.ledger.Record(ctx, mediaURL); err != nil {
		e.log.Warn("ledger record failed", logx.String("url", mediaURL), logx.Err(err))
	}
}

// sleepCtx waits d or until ctx is done; reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
