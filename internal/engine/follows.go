package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

// Follows is the global set of followed creators. It is shared by all
// subscribers in follows mode, not keyed per subscriber.
type Follows struct {
	store storage.Store // may be nil
	log   logx.Logger

	mu  sync.RWMutex
	set map[string]struct{}
}

func NewFollows(store storage.Store, log logx.Logger) *Follows {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Follows{
		store: store,
		log:   log,
		set:   map[string]struct{}{},
	}
}

func (f *Follows) Hydrate(ctx context.Context) error {
	if f.store == nil {
		return nil
	}
	names, err := f.store.LoadFollows(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.set[n] = struct{}{}
	}
	return nil
}

func (f *Follows) Contains(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[name]
	return ok
}

func (f *Follows) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.set)
}

// Names returns the followed creators in stable (sorted) order.
func (f *Follows) Names() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.set))
	for n := range f.set {
		out = append(out, n)
	}
	f.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (f *Follows) Add(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	f.mu.Lock()
	f.set[name] = struct{}{}
	f.mu.Unlock()
	if f.store != nil {
		if err := f.store.AddFollow(ctx, name); err != nil {
			f.log.Warn("follow persist failed", logx.String("creator", name), logx.Err(err))
		}
	}
}

func (f *Follows) Remove(ctx context.Context, name string) {
	f.mu.Lock()
	delete(f.set, name)
	f.mu.Unlock()
	if f.store != nil {
		if err := f.store.RemoveFollow(ctx, name); err != nil {
			f.log.Warn("unfollow persist failed", logx.String("creator", name), logx.Err(err))
		}
	}
}

// Toggle flips the follow state for name and reports the new state.
func (f *Follows) Toggle(ctx context.Context, name string) bool {
	if f.Contains(name) {
		f.Remove(ctx, name)
		return false
	}
	f.Add(ctx, name)
	return true
}
