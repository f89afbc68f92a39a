package app

import (
	"testing"
	"time"

	"clipbot/internal/config"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	if _, enabled, err := mapStorageConfig(&config.Config{}); err != nil || enabled {
		t.Fatalf("absent section = (enabled=%v, err=%v), want disabled", enabled, err)
	}

	cfg := &config.Config{Storage: &config.StorageConfig{Driver: "None"}}
	if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
		t.Fatalf("driver none = (enabled=%v, err=%v), want disabled", enabled, err)
	}

	cfg = &config.Config{Storage: &config.StorageConfig{Driver: "file"}}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("file driver without path: want error")
	}

	cfg = &config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "./db", BusyTimeout: "5s"}}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite = (enabled=%v, err=%v)", enabled, err)
	}
	if sc.Driver != "sqlite" || sc.BusyTimeout != 5*time.Second {
		t.Fatalf("sc = %+v", sc)
	}
}

func TestMapEngineConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Engine.PollInterval = "7s"
	ec, err := mapEngineConfig(cfg)
	if err != nil {
		t.Fatalf("mapEngineConfig: %v", err)
	}
	if ec.PollInterval != 7*time.Second {
		t.Fatalf("poll = %v", ec.PollInterval)
	}

	cfg.Engine.PollInterval = "fast"
	if _, err := mapEngineConfig(cfg); err == nil {
		t.Fatal("want error for bad duration")
	}
}

func TestMapProviderConfigRejectsBadCreatorURL(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Provider.CreatorURL = "https://api.example/users/search"
	if _, err := mapProviderConfig(cfg); err == nil {
		t.Fatalf("creator_url without %%s verb: want error")
	}

	cfg.Provider.CreatorURL = "https://api.example/users/%s/search"
	if _, err := mapProviderConfig(cfg); err != nil {
		t.Fatalf("mapProviderConfig: %v", err)
	}
}

func TestMapTokenTTLDefault(t *testing.T) {
	t.Parallel()

	ttl, err := mapTokenTTL(&config.Config{})
	if err != nil || ttl != time.Hour {
		t.Fatalf("ttl = (%v, %v), want 1h default", ttl, err)
	}
}
