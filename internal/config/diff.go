package config

import (
	"reflect"
	"strings"

	"remindbot/pkg/logx"
)

// SummarizeConfigChange lists the top-level sections that differ between two
// configs together with log fields describing the new values. Secrets such as
// the bot token are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)
	add := func(section string, fs ...logx.Field) {
		changed = append(changed, section)
		fields = append(fields, fs...)
	}

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		add("timezone", logx.String("timezone", newCfg.Timezone))
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		add("telegram",
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.poll_timeout", nt.PollTimeout),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		add("logging",
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file", l.File.Enabled),
			logx.Bool("logging.chat", l.Chat.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		add("storage",
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	osw, ns := oldCfg.SweepSettings(), newCfg.SweepSettings()
	if osw.IsEnabled() != ns.IsEnabled() || osw.Schedule != ns.Schedule || osw.BatchSize != ns.BatchSize ||
		osw.RatePerSec != ns.RatePerSec || osw.MaxCatchUp != ns.MaxCatchUp {
		add("sweep",
			logx.Bool("sweep.enabled", ns.IsEnabled()),
			logx.String("sweep.schedule", ns.Schedule),
			logx.Int("sweep.batch_size", ns.BatchSize),
			logx.Int("sweep.rate_per_sec", ns.RatePerSec),
		)
	}

	if !reflect.DeepEqual(oldCfg.Postpone, newCfg.Postpone) {
		add("postpone", logx.Strings("postpone", newCfg.Postpone))
	}
	if strings.TrimSpace(oldCfg.SessionTTL) != strings.TrimSpace(newCfg.SessionTTL) {
		add("session_ttl", logx.String("session_ttl", newCfg.SessionTTL))
	}
	if !reflect.DeepEqual(oldCfg.Keywords, newCfg.Keywords) {
		add("keywords", logx.Int("keywords.tokens", len(newCfg.Keywords)))
	}
	return changed, fields
}
