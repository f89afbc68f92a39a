// Package app wires the services together: config, logging, storage,
// provider, distribution engine, chat router and maintenance jobs.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clipbot/internal/config"
	"clipbot/internal/engine"
	"clipbot/internal/maintenance"
	"clipbot/internal/notifier"
	"clipbot/internal/provider"
	"clipbot/internal/runtime/supervisor"
	"clipbot/internal/storage"
	kit "clipbot/internal/transport"
	telegram "clipbot/internal/transport/telegram/adapter"
	"clipbot/internal/transport/telegram/router"
	logx "clipbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter

	tokens  *engine.TokenCache
	ledger  *engine.Ledger
	states  *engine.StateStore
	follows *engine.Follows

	eng    *engine.Engine
	notif  *notifier.Service
	router *router.Router
	maint  *maintenance.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New() applies immediately. Bootstrap with Telegram logging off,
	// set the target, then Apply() the real config so the sink never warns
	// about a missing target.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if chatID, threadID, ok := logTarget(cfg); ok {
		logSvc.SetTelegramTarget(chatID, threadID)
	}
	logSvc.Apply(mapLoggingConfig(cfg))

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	pcfg, err := mapProviderConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := provider.New(pcfg, log.With(logx.String("comp", "provider")))

	tokenTTL, err := mapTokenTTL(cfg)
	if err != nil {
		return nil, err
	}
	sentLimit, err := mapSentLimit(cfg)
	if err != nil {
		return nil, err
	}

	tokens := engine.NewTokenCache(client.FetchCredential, store, tokenTTL, log.With(logx.String("comp", "tokens")))
	ledger := engine.NewLedger(store, sentLimit, log.With(logx.String("comp", "ledger")))
	states := engine.NewStateStore(store, log.With(logx.String("comp", "states")))
	follows := engine.NewFollows(store, log.With(logx.String("comp", "follows")))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")))

	ecfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng := engine.New(ecfg, tokens, ledger, states, follows, client, notif, log.With(logx.String("comp", "engine")))

	rt := router.New(ad, states, follows, log.With(logx.String("comp", "router")))
	maint := maintenance.New(mapMaintenanceConfig(cfg), ledger, states, follows, log.With(logx.String("comp", "maintenance")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		tokens:  tokens,
		ledger:  ledger,
		states:  states,
		follows: follows,
		eng:     eng,
		notif:   notif,
		router:  rt,
		maint:   maint,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required")
		}
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapProviderConfig(cfg); err != nil {
			return err
		}
		if _, err := mapEngineConfig(cfg); err != nil {
			return err
		}
		if _, err := mapTokenTTL(cfg); err != nil {
			return err
		}
		if _, err := mapSentLimit(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	a.hydrate(a.sup.Context())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.maint.Start(a.sup.Context())

	// Both loops self-heal: a panic or error backs off and restarts the
	// loop instead of taking the process down.
	a.sup.GoRestart("engine.run", func(c context.Context) error {
		return a.eng.Run(c)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.GoRestart("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// hydrate restores persisted state. Failures degrade to an empty in-memory
// view rather than refusing to start.
func (a *App) hydrate(ctx context.Context) {
	if a.store == nil {
		return
	}
	a.tokens.Hydrate(ctx)
	if err := a.ledger.Hydrate(ctx); err != nil {
		a.log.Warn("sent ledger hydrate failed", logx.Err(err))
	}
	if err := a.states.Hydrate(ctx); err != nil {
		a.log.Warn("subscriber state hydrate failed", logx.Err(err))
	}
	if err := a.follows.Hydrate(ctx); err != nil {
		a.log.Warn("follows hydrate failed", logx.Err(err))
	}
	a.log.Info("state hydrated",
		logx.Int("subscribers", len(a.states.Snapshot())),
		logx.Int("follows", a.follows.Len()),
		logx.Int("sent_window", a.ledger.Len()),
	)
}

// applyConfig pushes a validated hot-reloaded config into the live services.
// Sections that cannot change at runtime (storage driver, telegram token)
// only log a restart hint.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	// update log target first so Apply() doesn't warn when Telegram logging is on
	if chatID, threadID, ok := logTarget(cfg); ok {
		a.logs.SetTelegramTarget(chatID, threadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	if ecfg, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.eng.Apply(ecfg)
	}
	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	a.maint.Apply(mapMaintenanceConfig(cfg))

	if _, enabled, err := mapStorageConfig(cfg); err == nil && enabled != (a.store != nil) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
		}
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		if cancel != nil {
			cancel()
		}
	}

	step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func logTarget(cfg *config.Config) (chatID int64, threadID int, ok bool) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return id, cfg.Logging.Telegram.ThreadID, true
}
