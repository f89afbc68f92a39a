package app

import (
	"fmt"
	"strings"
	"time"

	"clipbot/internal/config"
	"clipbot/internal/engine"
	"clipbot/internal/maintenance"
	"clipbot/internal/notifier"
	"clipbot/internal/provider"
	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

// Config section -> service config mapping. Each mapper also validates, so
// the hot-reload validator can reuse them to reject a bad config before it
// is committed.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapProviderConfig(cfg *config.Config) (provider.Config, error) {
	timeout, err := config.ParseDurationField("provider.timeout", cfg.Provider.Timeout)
	if err != nil {
		return provider.Config{}, err
	}
	if u := strings.TrimSpace(cfg.Provider.CreatorURL); u != "" && !strings.Contains(u, "%s") {
		return provider.Config{}, fmt.Errorf("provider.creator_url: missing %%s verb")
	}
	return provider.Config{
		AuthURL:     cfg.Provider.AuthURL,
		TrendingURL: cfg.Provider.TrendingURL,
		CreatorURL:  cfg.Provider.CreatorURL,
		Timeout:     timeout,
	}, nil
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	poll, err := config.ParseDurationField("engine.poll_interval", cfg.Engine.PollInterval)
	if err != nil {
		return engine.Config{}, err
	}
	backoff, err := config.ParseDurationField("engine.error_backoff", cfg.Engine.ErrorBackoff)
	if err != nil {
		return engine.Config{}, err
	}
	if cfg.Engine.PageSize < 0 {
		return engine.Config{}, fmt.Errorf("engine.page_size must be >= 0")
	}
	return engine.Config{
		PollInterval: poll,
		ErrorBackoff: backoff,
		PageSize:     cfg.Engine.PageSize,
	}, nil
}

func mapTokenTTL(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationField("engine.token_ttl", cfg.Engine.TokenTTL)
}

func mapSentLimit(cfg *config.Config) (int, error) {
	if cfg.Engine.SentLimit < 0 {
		return 0, fmt.Errorf("engine.sent_limit must be >= 0")
	}
	return cfg.Engine.SentLimit, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	every, err := config.ParseDurationField("engine.send_every", cfg.Engine.SendEvery)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{SendEvery: every}, nil
}

// mapStorageConfig reports enabled=false when the storage section is absent
// or the driver is "none".
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	if driver == "file" || driver == "sqlite" || driver == "sqlite3" {
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required for driver %q", driver)
		}
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

func mapMaintenanceConfig(cfg *config.Config) maintenance.Config {
	if cfg.Maintenance == nil {
		return maintenance.Config{}
	}
	return maintenance.Config{
		Enabled:     cfg.Maintenance.Enabled,
		CompactSpec: cfg.Maintenance.CompactSpec,
		StatsSpec:   cfg.Maintenance.StatsSpec,
	}
}
