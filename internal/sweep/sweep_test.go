package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

type sent struct {
	to   transport.ChatTarget
	text string
	opt  *transport.SendOptions
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	fail   map[int64]bool
	onSend func()
}

func (f *fakeSender) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to.ChatID] {
		return transport.MessageRef{}, errors.New("chat unreachable")
	}
	f.sent = append(f.sent, sent{to: to, text: text, opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) EditText(context.Context, transport.MessageRef, string, *transport.SendOptions) error {
	return nil
}

func (f *fakeSender) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func newService(t *testing.T) (*Service, storage.Store, *fakeSender) {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "r.json")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs := &fakeSender{fail: map[int64]bool{}}
	svc := New(Settings{
		Enabled:    true,
		RatePerSec: 1000,
		Location:   time.UTC,
		Postpone:   []time.Duration{15 * time.Minute, time.Hour},
	}, st, fs, logx.Nop())
	return svc, st, fs
}

func create(t *testing.T, st storage.Store, chat int64, text string, tr remind.Trigger, rule remind.Rule) storage.Reminder {
	t.Helper()
	r := storage.Reminder{ChatID: chat, UserID: 1, Text: text}
	r.SetSchedule(remind.Schedule{Trigger: tr, Repeat: rule}, time.UTC)
	require.NoError(t, st.Create(context.Background(), &r))
	return r
}

func trig(y int, m time.Month, d, h, min int) remind.Trigger {
	return remind.Trigger{Date: remind.Date{Year: y, Month: m, Day: d}, Time: remind.TimeOfDay{Hour: h, Minute: min}}
}

func TestRunOnceOneShot(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 42, "call mom", trig(2000, 1, 1, 9, 0), 0)
	future := create(t, st, 42, "later", trig(2000, 1, 2, 9, 0), 0)

	rep, err := svc.RunOnce(ctx, time.Date(2000, 1, 1, 9, 0, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Report{Due: 1, Sent: 1, Retired: 1}, rep)

	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].to.ChatID)
	assert.Contains(t, msgs[0].text, "call mom")
	assert.NotContains(t, msgs[0].text, "next:")
	rm, ok := msgs[0].opt.ReplyMarkup.(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, rm.InlineKeyboard, 2)
	assert.Equal(t, "+15m", rm.InlineKeyboard[0][0].Text)
	assert.Equal(t, PostponeData(r.ID, 15*time.Minute), rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, DoneData(r.ID), rm.InlineKeyboard[1][0].Data)

	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)
	untouched, err := st.Get(ctx, future.ID)
	require.NoError(t, err)
	assert.False(t, untouched.Notified)

	rep, err = svc.RunOnce(ctx, time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, rep.Due)
}

func TestRunOnceRearmsAndCatchesUp(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 1, "stretch", trig(2000, 1, 1, 9, 0), remind.RuleOf(remind.EveryDay))

	// Three days late: one delivery, next trigger is the first one after now.
	rep, err := svc.RunOnce(ctx, time.Date(2000, 1, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Rearmed)
	require.Len(t, fs.messages(), 1)
	assert.Contains(t, fs.messages()[0].text, "2000-01-05 09:00:00")

	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Notified)
	assert.Equal(t, "2000-01-05", got.Date)
	assert.Equal(t, "09:00:00", got.Time)
	assert.Equal(t, "17,", got.Repeat)
	assert.True(t, time.Date(2000, 1, 5, 9, 0, 0, 0, time.UTC).Equal(got.DueAt))
}

func TestRunOnceKeepsScheduleEditedDuringSend(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 7, "original", trig(2000, 1, 1, 9, 0), remind.RuleOf(remind.EveryDay))

	fs.onSend = func() {
		cur, err := st.Get(ctx, r.ID)
		require.NoError(t, err)
		cur.Text = "edited by user"
		cur.SetSchedule(remind.Schedule{Trigger: trig(2001, 1, 1, 8, 0)}, time.UTC)
		require.NoError(t, st.Update(ctx, &cur))
	}

	rep, err := svc.RunOnce(ctx, time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, rep.Conflicts)
	assert.Zero(t, rep.Rearmed)

	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited by user", got.Text)
	assert.Equal(t, "2001-01-01", got.Date)
	assert.Equal(t, "08:00:00", got.Time)
	assert.Empty(t, got.Repeat)
	assert.False(t, got.Notified)
}

func TestRunOnceRetiresTextEditedDuringSend(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 7, "original", trig(2000, 1, 1, 9, 0), 0)

	fs.onSend = func() {
		cur, err := st.Get(ctx, r.ID)
		require.NoError(t, err)
		cur.Text = "new wording"
		require.NoError(t, st.Update(ctx, &cur))
	}

	rep, err := svc.RunOnce(ctx, time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Retired)
	assert.Zero(t, rep.Conflicts)

	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "new wording", got.Text)
	assert.True(t, got.Notified)
}

func TestRunOnceCorruptedRule(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 1, "broken", trig(2000, 1, 1, 9, 0), 0)
	r.Repeat = "17,x,"
	require.NoError(t, st.Update(ctx, &r))

	rep, err := svc.RunOnce(ctx, time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Corrupted)
	assert.Equal(t, 1, rep.Retired)
	assert.Len(t, fs.messages(), 1)

	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)
	assert.Empty(t, got.Repeat)
}

func TestRunOnceSendFailureRetries(t *testing.T) {
	svc, st, fs := newService(t)
	ctx := context.Background()
	r := create(t, st, 7, "retry me", trig(2000, 1, 1, 9, 0), 0)
	fs.fail[7] = true

	now := time.Date(2000, 1, 1, 9, 1, 0, 0, time.UTC)
	rep, err := svc.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	got, err := st.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Notified)

	fs.fail[7] = false
	rep, err = svc.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
}

func TestRunOnceBatchSize(t *testing.T) {
	svc, st, fs := newService(t)
	require.NoError(t, svc.Apply(Settings{Enabled: true, BatchSize: 2, RatePerSec: 1000, Location: time.UTC}))
	for i := 0; i < 3; i++ {
		create(t, st, 1, "n", trig(2000, 1, 1, 9, i), 0)
	}
	rep, err := svc.RunOnce(context.Background(), time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Due)
	assert.Len(t, fs.messages(), 2)
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		raw   string
		kind  SpecKind
		every time.Duration
	}{
		{raw: "*/5 * * * *", kind: SpecCron},
		{raw: "*/20 * * * * *", kind: SpecCron},
		{raw: "@every 30s", kind: SpecCron},
		{raw: "cron:0 9 * * *", kind: SpecCron},
		{raw: "30s", kind: SpecInterval, every: 30 * time.Second},
		{raw: "every:2m", kind: SpecInterval, every: 2 * time.Minute},
		{raw: "00:05", kind: SpecInterval, every: 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.every, p.Every)
			_, err = p.Schedule()
			require.NoError(t, err)
		})
	}

	for _, bad := range []string{"", "soon", "100ms", "01:75", "cron:", "* * *"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestCallbackData(t *testing.T) {
	data := PostponeData("abc", 3*time.Hour)
	assert.Equal(t, "rmd:snz:10800:abc", data)
	assert.LessOrEqual(t, len(PostponeData("123e4567-e89b-12d3-a456-426614174000", 24*time.Hour)), tgui.MaxDataLen)

	ns, action, payload, ok := tgui.ParseData(data)
	require.True(t, ok)
	assert.Equal(t, CallbackNS, ns)
	assert.Equal(t, ActionPostpone, action)
	id, d, ok := ParsePostponePayload(payload)
	require.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Equal(t, 3*time.Hour, d)

	_, _, ok = ParsePostponePayload("x:abc")
	assert.False(t, ok)
	_, _, ok = ParsePostponePayload("60")
	assert.False(t, ok)

	assert.Equal(t, "15m", ShortDuration(15*time.Minute))
	assert.Equal(t, "1h", ShortDuration(time.Hour))
	assert.Equal(t, "1h30m", ShortDuration(90*time.Minute))
	assert.Equal(t, "24h", ShortDuration(24*time.Hour))
}

func TestStartStopAndApply(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Apply(Settings{Enabled: true, Schedule: "*/1 * * * *", RatePerSec: 5, Location: time.UTC}))
	assert.Error(t, svc.Apply(Settings{Enabled: true, Schedule: "nope"}))
	require.NoError(t, svc.Apply(Settings{Enabled: false}))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	svc.Stop(stopCtx)
}
