package config

// Config is the whole remindbot configuration file.
//
// All durations are Go duration strings ("30s", "15m", "24h").
type Config struct {
	// Timezone is the IANA zone used to interpret and display reminder
	// times. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Sweep    SweepConfig    `json:"sweep"`

	// Postpone lists the durations offered on a fired reminder.
	// Defaults to 15m, 1h, 3h, 24h.
	Postpone []string `json:"postpone,omitempty"`

	// SessionTTL bounds how long an unfinished /remind or /edit dialog is
	// kept. Defaults to 10m.
	SessionTTL string `json:"session_ttl,omitempty"`

	// Keywords is the resolver's synonym catalog: token name -> surface
	// forms ("tomorrow|tmrw", "завтра"). Omitted means the built-in
	// English/Russian catalog.
	Keywords map[string][]string `json:"keywords,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout. Defaults to 10s.
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat forwards warnings and errors to a chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the reminder store.
//
//	"storage": { "driver": "sqlite", "path": "./data/remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SweepConfig controls the delivery sweep.
//
// Enabled is a pointer so an omitted field means "on".
type SweepConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Schedule is a cron spec ("*/1 * * * *", "@every 30s") or a bare
	// interval ("30s"). Defaults to every 30s.
	Schedule   string `json:"schedule,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// MaxCatchUp bounds how many repeat steps are applied to skip firings
	// missed while the bot was down.
	MaxCatchUp int `json:"max_catch_up,omitempty"`
}

func (s SweepConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }
