package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/pkg/remind"
)

const (
	DefaultSweepSchedule = "30s"
	DefaultBatchSize     = 100
	DefaultSweepRate     = 20
	DefaultMaxCatchUp    = 10000
	DefaultSessionTTL    = 10 * time.Minute
	DefaultPollTimeout   = 10 * time.Second
)

var defaultPostpone = []time.Duration{15 * time.Minute, time.Hour, 3 * time.Hour, 24 * time.Hour}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// PostponeDurations returns the postpone choices in config order.
func (c *Config) PostponeDurations() ([]time.Duration, error) {
	if len(c.Postpone) == 0 {
		return append([]time.Duration(nil), defaultPostpone...), nil
	}
	out := make([]time.Duration, 0, len(c.Postpone))
	for i, raw := range c.Postpone {
		d, err := ParseDurationField(fmt.Sprintf("postpone[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		if d < time.Minute {
			return nil, fmt.Errorf("postpone[%d]: must be at least 1m", i)
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Config) SessionTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("session_ttl", c.SessionTTL, DefaultSessionTTL)
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, DefaultPollTimeout)
}

// Synonyms returns the keyword catalog, or the built-in one when unset.
func (c *Config) Synonyms() remind.Synonyms {
	if len(c.Keywords) == 0 {
		return remind.DefaultSynonyms()
	}
	return remind.Synonyms(c.Keywords)
}

// SweepSettings returns the sweep section with defaults filled in.
func (c *Config) SweepSettings() SweepConfig {
	s := c.Sweep
	if strings.TrimSpace(s.Schedule) == "" {
		s.Schedule = DefaultSweepSchedule
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.RatePerSec <= 0 {
		s.RatePerSec = DefaultSweepRate
	}
	if s.MaxCatchUp <= 0 {
		s.MaxCatchUp = DefaultMaxCatchUp
	}
	return s
}

// Validate checks everything that can be checked without other packages:
// durations, timezone, storage driver and the keyword catalog.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PostponeDurations(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SessionTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PollTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if _, err := remind.CompileCatalog(c.Synonyms()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
