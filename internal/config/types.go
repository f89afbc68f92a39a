package config

// Config is the root configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Provider ProviderConfig `json:"provider"`
	Engine   EngineConfig   `json:"engine"`

	Storage     *StorageConfig     `json:"storage,omitempty"`
	Maintenance *MaintenanceConfig `json:"maintenance,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is an optional chat id (as string) receiving forwarded log lines.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// ProviderConfig points at the clip provider API.
//
// Empty URLs fall back to the public endpoints; tests override them with
// an httptest server.
type ProviderConfig struct {
	AuthURL     string `json:"auth_url,omitempty"`
	TrendingURL string `json:"trending_url,omitempty"`
	// CreatorURL is a format string with one %s verb for the creator name.
	CreatorURL string `json:"creator_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

// EngineConfig controls the distribution loop.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "5s"
//   - error_backoff: "10s"
//   - send_every: "500ms"
//   - token_ttl: "1h"
//   - page_size: 100
//   - sent_limit: 1000
type EngineConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`
	ErrorBackoff string `json:"error_backoff,omitempty"`
	SendEvery    string `json:"send_every,omitempty"`
	TokenTTL     string `json:"token_ttl,omitempty"`
	PageSize     int    `json:"page_size,omitempty"`
	SentLimit    int    `json:"sent_limit,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./clipbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MaintenanceConfig controls scheduled background jobs.
//
// Specs are cron expressions ("0 4 * * *") or @-descriptors ("@daily",
// "@every 1h"). Empty spec disables that job.
type MaintenanceConfig struct {
	Enabled     bool   `json:"enabled"`
	CompactSpec string `json:"compact_spec,omitempty"`
	StatsSpec   string `json:"stats_spec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
