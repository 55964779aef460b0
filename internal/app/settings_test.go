package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/config"
)

func TestMapSettingsDefaults(t *testing.T) {
	cfg := &config.Config{}

	bs, err := mapBotSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, bs.Location)
	assert.Equal(t, config.DefaultSessionTTL, bs.SessionTTL)
	assert.Equal(t, config.DefaultMaxCatchUp, bs.MaxCatchUp)
	assert.Len(t, bs.Postpone, 4)

	ss, err := mapSweepSettings(cfg)
	require.NoError(t, err)
	assert.True(t, ss.Enabled)
	assert.Equal(t, config.DefaultSweepSchedule, ss.Schedule)
	assert.Equal(t, config.DefaultBatchSize, ss.BatchSize)
	assert.Equal(t, config.DefaultMaxCatchUp, ss.MaxCatchUp)

	sc, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sc.BusyTimeout)
}

func TestMapSettingsExplicit(t *testing.T) {
	off := false
	cfg := &config.Config{
		Timezone:   "Europe/Moscow",
		Postpone:   []string{"10m", "2h"},
		SessionTTL: "3m",
		Sweep:      config.SweepConfig{Enabled: &off, Schedule: "*/5 * * * *", BatchSize: 7, MaxCatchUp: 3},
		Storage:    config.StorageConfig{Driver: " SQLite ", Path: "x.db", BusyTimeout: "2s"},
	}

	bs, err := mapBotSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", bs.Location.String())
	assert.Equal(t, []time.Duration{10 * time.Minute, 2 * time.Hour}, bs.Postpone)
	assert.Equal(t, 3*time.Minute, bs.SessionTTL)
	assert.Equal(t, 3, bs.MaxCatchUp)

	ss, err := mapSweepSettings(cfg)
	require.NoError(t, err)
	assert.False(t, ss.Enabled)
	assert.Equal(t, 7, ss.BatchSize)

	sc, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 2*time.Second, sc.BusyTimeout)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate(&config.Config{}))

	bad := &config.Config{Sweep: config.SweepConfig{Schedule: "every:0s"}}
	assert.ErrorContains(t, validate(bad), "sweep.schedule")

	off := false
	bad.Sweep.Enabled = &off
	assert.NoError(t, validate(bad))

	chat := &config.Config{Logging: config.LoggingConfig{Chat: config.LoggingChat{Enabled: true}}}
	assert.ErrorContains(t, validate(chat), "logging.chat.chat_id")

	busy := &config.Config{Storage: config.StorageConfig{BusyTimeout: "soon"}}
	assert.Error(t, validate(busy))
}
