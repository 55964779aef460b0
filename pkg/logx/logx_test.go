package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug).With(String("comp", "sweep"))
	log.Info("fired", Int("count", 3), Err(errors.New("boom")), Err(nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sweep", rec["comp"])
	assert.Equal(t, "fired", rec["message"])
	assert.EqualValues(t, 3, rec["count"])
	assert.Equal(t, "boom", rec["err"])
	assert.True(t, strings.HasPrefix(rec["caller"].(string), "logx_test.go:"))
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn)
	log.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))

	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Error("discarded")
	Nop().Error("discarded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel(" warning ", LevelInfo))
	assert.Equal(t, LevelDebug, ParseLevel("debug", LevelInfo))
	assert.Equal(t, LevelInfo, ParseLevel("chatty", LevelInfo))
}

func TestFormatChatRecord(t *testing.T) {
	line := `{"level":"error","time":"x","message":"send failed","reminder":"r1","comp":"sweep"}` + "\n"
	got := formatChatRecord([]byte(line))
	assert.Equal(t, "[ERROR] send failed\n- comp=sweep\n- reminder=r1", got)

	assert.Equal(t, "plain text", formatChatRecord([]byte("  plain text \n")))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

type recordingSender struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSender) SendLog(_ context.Context, chatID int64, _ int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func TestServiceChatSink(t *testing.T) {
	rec := &recordingSender{}
	svc, log := NewService(Config{
		Level: "debug",
		Chat:  ChatConfig{Enabled: true, ChatID: 42, MinLevel: "warn", RatePerSec: 100},
	}, rec)
	defer svc.Close()

	log.Info("below threshold")
	log.Warn("disk almost full", String("comp", "storage"))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	assert.Contains(t, rec.lines[0], "[WARN] disk almost full")
	rec.mu.Unlock()

	svc.Apply(Config{Level: "debug"})
	log.Error("chat sink disabled")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestServiceChatSinkRateLimited(t *testing.T) {
	svc, log := NewService(Config{
		Level: "info",
		Chat:  ChatConfig{Enabled: true, ChatID: 1, MinLevel: "error", RatePerSec: 1},
	}, nil)
	defer svc.Close()

	for i := 0; i < 5; i++ {
		log.Error("burst")
	}
	assert.GreaterOrEqual(t, svc.Dropped(), uint64(4))
}
