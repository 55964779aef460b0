package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "timezone": "UTC",
  "telegram": {"token": "secret", "poll_timeout": "5s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "chat": {"enabled": false, "chat_id": 0}},
  "storage": {"driver": "sqlite", "path": "./data/r.db"},
  "sweep": {"schedule": "@every 10s", "batch_size": 5},
  "postpone": ["10m", "2h"],
  "keywords": {"tomorrow": ["tomorrow|tmrw"]}
}`

const sampleYAML = `
timezone: UTC
telegram:
  token: secret
logging:
  level: info
storage:
  driver: file
  path: ./data/reminders.json
sweep:
  enabled: false
keywords:
  today: ["today"]
  tomorrow: ["tomorrow"]
`

func TestDecodeJSON(t *testing.T) {
	cfg, err := Decode("config.json", []byte(sampleJSON))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "secret", cfg.Telegram.Token)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	pd, err := cfg.PostponeDurations()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Minute, 2 * time.Hour}, pd)

	s := cfg.SweepSettings()
	assert.True(t, s.IsEnabled())
	assert.Equal(t, "@every 10s", s.Schedule)
	assert.Equal(t, 5, s.BatchSize)
	assert.Equal(t, DefaultSweepRate, s.RatePerSec)

	poll, err := cfg.PollTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, poll)
}

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.False(t, cfg.Sweep.IsEnabled())
	assert.Len(t, cfg.Synonyms(), 2)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"telegram": {"token": "x", "owner": 1}}`))
	require.Error(t, err)

	_, err = Decode("config.yml", []byte("sweep:\n  cadence: 5s\n"))
	require.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{} {}`))
	require.EqualError(t, err, errTrailingContent)
}

func TestDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	pd, err := cfg.PostponeDurations()
	require.NoError(t, err)
	assert.Len(t, pd, 4)

	ttl, err := cfg.SessionTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, ttl)

	assert.NotEmpty(t, cfg.Synonyms())
	assert.Equal(t, DefaultSweepSchedule, cfg.SweepSettings().Schedule)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		Timezone:   "Mars/Olympus",
		Postpone:   []string{"soon", "10s"},
		SessionTTL: "-1m",
		Storage:    StorageConfig{Driver: "postgres"},
		Keywords:   map[string][]string{"someday": {"someday"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"timezone", "postpone[0]", "session_ttl", "storage.driver", "someday"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDurationField("x", " 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = ParseDurationField("x", "-5s")
	assert.ErrorContains(t, err, "x: duration must be >= 0")
}

func TestSummarizeConfigChange(t *testing.T) {
	a, err := Decode("a.json", []byte(sampleJSON))
	require.NoError(t, err)
	b := *a
	b.Telegram.Token = "rotated"
	b.Postpone = []string{"5m"}
	b.Sweep.BatchSize = 50

	changed, fields := SummarizeConfigChange(a, &b)
	assert.Equal(t, []string{"telegram", "sweep", "postpone"}, changed)
	assert.NotEmpty(t, fields)

	changed, _ = SummarizeConfigChange(a, a)
	assert.Empty(t, changed)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestManagerLoadAndWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, sampleJSON)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	m.SetValidator(func(_ context.Context, c *Config) error {
		if c.Sweep.BatchSize == 13 {
			return assert.AnError
		}
		return nil
	})
	updates := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, `{"sweep": {"batch_size": 13}}`)
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 5, m.Get().Sweep.BatchSize, "rejected reload must keep the old config")

	writeFile(t, path, `{"sweep": {"batch_size": 7}}`)
	select {
	case got := <-updates:
		assert.Equal(t, 7, got.Sweep.BatchSize)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
	assert.Equal(t, 7, m.Get().Sweep.BatchSize)

	cancel()
	<-done
	m.Unsubscribe(updates)
	_, open := <-updates
	assert.False(t, open)
}
