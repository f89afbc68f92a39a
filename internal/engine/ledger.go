package engine

import (
	"context"
	"sync"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

// Ledger is the global record of already-delivered clip URLs. It is a
// bounded FIFO set: entries leave only by truncation, oldest first, and
// after any truncation the durable log and the in-memory set agree on the
// newest limit entries.
//
// Dedup is deliberately global, not per subscriber: once any subscriber
// has received a clip it is suppressed for everyone.
type Ledger struct {
	store storage.Store // may be nil
	limit int
	log   logx.Logger

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

const DefaultSentLimit = 1000

func NewLedger(store storage.Store, limit int, log logx.Logger) *Ledger {
	if limit <= 0 {
		limit = DefaultSentLimit
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{
		store: store,
		limit: limit,
		log:   log,
		seen:  map[string]struct{}{},
	}
}

// Hydrate reloads the ledger from the durable log and truncates it to the
// limit right away, so a log grown past the bound under an older limit is
// trimmed before the first cycle.
func (l *Ledger) Hydrate(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	urls, err := l.store.LoadSent(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{}, len(urls))
	l.order = l.order[:0]
	for _, u := range urls {
		if _, dup := l.seen[u]; dup {
			continue
		}
		l.seen[u] = struct{}{}
		l.order = append(l.order, u)
	}
	return l.truncateLocked(ctx)
}

// Seen reports whether url is in the ledger.
func (l *Ledger) Seen(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[url]
	return ok
}

// Record adds url to the ledger and the durable log, then truncates.
// It reports whether the entry was new; recording an existing entry is a
// no-op, so a concurrent double-record cannot grow the ledger.
func (l *Ledger) Record(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[url]; ok {
		return false, nil
	}
	l.seen[url] = struct{}{}
	l.order = append(l.order, url)

	if l.store != nil {
		if err := l.store.AppendSent(ctx, url); err != nil {
			return true, err
		}
	}
	return true, l.truncateLocked(ctx)
}

// Truncate enforces the bound out of band (maintenance jobs).
func (l *Ledger) Truncate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.truncateLocked(ctx)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Ledger) truncateLocked(ctx context.Context) error {
	if len(l.order) <= l.limit {
		return nil
	}
	evicted := len(l.order) - l.limit
	for _, u := range l.order[:evicted] {
		delete(l.seen, u)
	}
	l.order = append(l.order[:0], l.order[evicted:]...)

	l.log.Debug("ledger truncated", logx.Int("evicted", evicted), logx.Int("size", len(l.order)))
	if l.store == nil {
		return nil
	}
	return l.store.ReplaceSent(ctx, l.order)
}
