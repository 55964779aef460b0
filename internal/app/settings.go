package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/storage"
	"remindbot/internal/sweep"
	"remindbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Chat.Enabled,
			ChatID:     l.Chat.ChatID,
			ThreadID:   l.Chat.ThreadID,
			MinLevel:   l.Chat.MinLevel,
			RatePerSec: l.Chat.RatePerSec,
		},
	}
}

func mapBotSettings(cfg *config.Config) (bot.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return bot.Settings{}, err
	}
	postpone, err := cfg.PostponeDurations()
	if err != nil {
		return bot.Settings{}, err
	}
	ttl, err := cfg.SessionTimeout()
	if err != nil {
		return bot.Settings{}, err
	}
	return bot.Settings{
		Location:   loc,
		Postpone:   postpone,
		SessionTTL: ttl,
		MaxCatchUp: cfg.SweepSettings().MaxCatchUp,
	}, nil
}

func mapSweepSettings(cfg *config.Config) (sweep.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return sweep.Settings{}, err
	}
	postpone, err := cfg.PostponeDurations()
	if err != nil {
		return sweep.Settings{}, err
	}
	s := cfg.SweepSettings()
	return sweep.Settings{
		Enabled:    s.IsEnabled(),
		Schedule:   s.Schedule,
		BatchSize:  s.BatchSize,
		RatePerSec: s.RatePerSec,
		MaxCatchUp: s.MaxCatchUp,
		Location:   loc,
		Postpone:   postpone,
	}, nil
}

// validate runs the checks that need packages config cannot import. It
// guards both startup and every hot reload.
func validate(cfg *config.Config) error {
	var errs []error
	if _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if s := cfg.SweepSettings(); s.IsEnabled() {
		if _, err := sweep.ParseSchedule(s.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("sweep.schedule: %w", err))
		}
	}
	if cfg.Logging.Chat.Enabled && cfg.Logging.Chat.ChatID == 0 {
		errs = append(errs, errors.New("logging.chat.chat_id is required when logging.chat.enabled is true"))
	}
	return errors.Join(errs...)
}
