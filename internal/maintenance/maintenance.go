// Package maintenance runs scheduled housekeeping jobs: ledger compaction
// and a periodic stats heartbeat.
package maintenance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"clipbot/internal/engine"
	logx "clipbot/pkg/logx"
)

type Config struct {
	Enabled     bool
	CompactSpec string // cron spec or @-descriptor; empty disables the job
	StatsSpec   string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.CompactSpec) == "" {
		c.CompactSpec = "@daily"
	}
	if strings.TrimSpace(c.StatsSpec) == "" {
		c.StatsSpec = "@every 30m"
	}
	return c
}

type Service struct {
	cfg    Config
	log    logx.Logger
	parser cron.Parser

	ledger  *engine.Ledger
	states  *engine.StateStore
	follows *engine.Follows

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, ledger *engine.Ledger, states *engine.StateStore, follows *engine.Follows, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg.withDefaults(),
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ledger:  ledger,
		states:  states,
		follows: follows,
	}
}

// Apply swaps the config; spec changes take effect by restarting cron.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	changed := cfg != s.cfg
	s.cfg = cfg
	running := s.c != nil
	s.mu.Unlock()

	if !changed || !running {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Start(ctx)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	cfg := s.cfg
	if !cfg.Enabled {
		s.log.Debug("maintenance disabled")
		return
	}

	c := cron.New(cron.WithParser(s.parser))
	add := func(name, spec string, job func(context.Context)) {
		if strings.TrimSpace(spec) == "" {
			return
		}
		_, err := c.AddFunc(spec, func() {
			jctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			job(jctx)
		})
		if err != nil {
			s.log.Warn("maintenance job not scheduled", logx.String("job", name), logx.String("spec", spec), logx.Err(err))
			return
		}
		s.log.Debug("maintenance job scheduled", logx.String("job", name), logx.String("spec", spec))
	}

	add("compact", cfg.CompactSpec, s.compact)
	add("stats", cfg.StatsSpec, s.stats)

	c.Start()
	s.c = c
	s.log.Info("maintenance started", logx.String("compact", cfg.CompactSpec), logx.String("stats", cfg.StatsSpec))
	_ = ctx
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("maintenance stopped")
}

// compact rewrites the persisted sent log down to the in-memory window.
func (s *Service) compact(ctx context.Context) {
	before := s.ledger.Len()
	if err := s.ledger.Truncate(ctx); err != nil {
		s.log.Warn("ledger compaction failed", logx.Err(err))
		return
	}
	s.log.Info("ledger compacted", logx.Int("entries", before))
}

func (s *Service) stats(ctx context.Context) {
	_ = ctx
	snap := s.states.Snapshot()
	active := 0
	for _, st := range snap {
		if st.Active {
			active++
		}
	}
	s.log.Info("stats",
		logx.Int("subscribers", len(snap)),
		logx.Int("active", active),
		logx.Int("follows", s.follows.Len()),
		logx.Int("sent_window", s.ledger.Len()),
	)
}
