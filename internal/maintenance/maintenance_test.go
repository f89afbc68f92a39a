package maintenance

import (
	"context"
	"testing"
	"time"

	"clipbot/internal/engine"
	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

func newTestService(t *testing.T, cfg Config) (*Service, *engine.Ledger) {
	t.Helper()
	store := storage.NewMemory()
	ledger := engine.NewLedger(store, 2, logx.Logger{})
	states := engine.NewStateStore(nil, logx.Logger{})
	follows := engine.NewFollows(nil, logx.Logger{})
	return New(cfg, ledger, states, follows, logx.Logger{}), ledger
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	got := Config{Enabled: true}.withDefaults()
	if got.CompactSpec != "@daily" {
		t.Fatalf("CompactSpec = %q", got.CompactSpec)
	}
	if got.StatsSpec != "@every 30m" {
		t.Fatalf("StatsSpec = %q", got.StatsSpec)
	}

	custom := Config{Enabled: true, CompactSpec: "0 4 * * *", StatsSpec: "@hourly"}.withDefaults()
	if custom.CompactSpec != "0 4 * * *" || custom.StatsSpec != "@hourly" {
		t.Fatalf("custom specs overridden: %+v", custom)
	}
}

func TestDisabledServiceDoesNotSchedule(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, Config{Enabled: false})
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	s.mu.Lock()
	running := s.c != nil
	s.mu.Unlock()
	if running {
		t.Fatal("disabled service must not start cron")
	}
}

func TestStartIsIdempotentAndStops(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, Config{Enabled: true})
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)

	s.mu.Lock()
	c := s.c
	s.mu.Unlock()
	if c == nil {
		t.Fatal("enabled service must start cron")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)

	s.mu.Lock()
	stopped := s.c == nil
	s.mu.Unlock()
	if !stopped {
		t.Fatal("Stop must clear the cron handle")
	}
}

func TestJobsRunDirectly(t *testing.T) {
	t.Parallel()

	s, ledger := newTestService(t, Config{Enabled: true})
	ctx := context.Background()

	if _, err := ledger.Record(ctx, "https://cdn.example/a.mp4"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.compact(ctx)
	s.stats(ctx)
	if ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", ledger.Len())
	}
}
