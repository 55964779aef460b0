// Package sweep delivers due reminders. A cron trigger runs RunOnce, which
// sends every due reminder and then re-arms or retires it in the store.
package sweep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
)

// Settings is the effective sweep configuration.
type Settings struct {
	Enabled    bool
	Schedule   string
	BatchSize  int
	RatePerSec int
	MaxCatchUp int
	Location   *time.Location
	Postpone   []time.Duration
}

// Report summarizes one sweep.
type Report struct {
	Due       int
	Sent      int
	Failed    int
	Rearmed   int
	Retired   int
	Corrupted int
	// Conflicts counts reminders edited while being fired; their new
	// schedule is kept as is.
	Conflicts int
}

type Service struct {
	log    logx.Logger
	store  storage.Store
	sender transport.Sender
	now    func() time.Time

	mu      sync.Mutex
	cfg     Settings
	c       *cron.Cron
	baseCtx context.Context
	limiter *rate.Limiter

	busy    atomic.Bool
	skipped atomic.Uint64
}

func New(cfg Settings, store storage.Store, sender transport.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = normalize(cfg)
	return &Service{
		log:     log.With(logx.String("comp", "sweep")),
		store:   store,
		sender:  sender,
		now:     time.Now,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func normalize(cfg Settings) Settings {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "30s"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.MaxCatchUp <= 0 {
		cfg.MaxCatchUp = 10000
	}
	return cfg
}

func (s *Service) settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins cron triggering. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.baseCtx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cfg := s.cfg
	if !cfg.Enabled {
		s.log.Info("sweep disabled")
		return nil
	}
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	sched, err := spec.Schedule()
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(cfg.Location))
	ctx := s.baseCtx
	c.Schedule(sched, cron.FuncJob(func() { s.tick(ctx) }))
	c.Start()
	s.c = c
	s.log.Info("sweep started",
		logx.String("schedule", spec.String()), logx.String("tz", cfg.Location.String()),
		logx.Int("batch_size", cfg.BatchSize), logx.Int("rate_per_sec", cfg.RatePerSec))
	return nil
}

// Apply swaps in new settings. The cron trigger is rebuilt only when the
// schedule, timezone or enabled flag changed.
func (s *Service) Apply(cfg Settings) error {
	cfg = normalize(cfg)
	if cfg.Enabled {
		if _, err := ParseSchedule(cfg.Schedule); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	s.limiter.SetBurst(cfg.RatePerSec)

	if s.baseCtx == nil {
		return nil
	}
	if old.Enabled == cfg.Enabled && old.Schedule == cfg.Schedule && old.Location.String() == cfg.Location.String() {
		return nil
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	s.log.Info("sweep rescheduling", logx.String("schedule", cfg.Schedule), logx.Bool("enabled", cfg.Enabled))
	return s.startLocked()
}

// Stop stops triggering and waits for a running sweep, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.baseCtx = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	if n := s.skipped.Load(); n > 0 {
		s.log.Info("sweep stopped", logx.Uint64("overlapping_ticks_skipped", n))
		return
	}
	s.log.Info("sweep stopped")
}

// tick runs one sweep unless the previous one is still busy.
func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return
	}
	defer s.busy.Store(false)

	start := time.Now()
	rep, err := s.RunOnce(ctx, s.now())
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("sweep failed", logx.Err(err))
	}
	if rep.Due > 0 {
		s.log.Info("sweep done",
			logx.Int("due", rep.Due), logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed),
			logx.Int("rearmed", rep.Rearmed), logx.Int("retired", rep.Retired),
			logx.Int("corrupted", rep.Corrupted), logx.Int("conflicts", rep.Conflicts), logx.Duration("took", time.Since(start)))
	}
}

// RunOnce fires every reminder due at now, up to the batch size. A reminder
// whose send fails stays due and is retried by the next sweep.
func (s *Service) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	cfg := s.settings()
	var rep Report
	due, err := s.store.ListDue(ctx, now, cfg.BatchSize)
	if err != nil {
		return rep, err
	}
	rep.Due = len(due)
	for i := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return rep, err
		}
		s.fire(ctx, cfg, due[i], now, &rep)
	}
	return rep, nil
}

func (s *Service) fire(ctx context.Context, cfg Settings, r storage.Reminder, now time.Time, rep *Report) {
	log := s.log.With(logx.String("id", r.ID), logx.Int64("chat_id", r.ChatID))

	sched, err := r.Schedule()
	broken := false
	switch {
	case err == nil:
	case errors.Is(err, remind.ErrCorruptedRule):
		// The trigger is intact: deliver once and stop repeating.
		log.Warn("corrupted repeat rule, repetition disabled", logx.String("repeat", r.Repeat), logx.Err(err))
		rep.Corrupted++
		sched.Repeat = 0
	default:
		log.Error("unreadable schedule, retiring reminder", logx.Err(err))
		rep.Corrupted++
		broken = true
	}

	var next *remind.Trigger
	if !broken && sched.Repeating() {
		t, _ := remind.NextAfter(sched.Trigger, sched.Repeat, now, cfg.Location, cfg.MaxCatchUp)
		next = &t
	}

	msg := Card(r, next, cfg.Postpone)
	if _, err := msg.Send(ctx, s.sender, transport.ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID}); err != nil {
		rep.Failed++
		log.Warn("reminder send failed", logx.Err(err))
		return
	}
	rep.Sent++

	settle := func(rec *storage.Reminder) {
		switch {
		case broken:
			rec.Notified = true
		case next != nil:
			sched.Trigger = *next
			sched.Notified = false
			rec.SetSchedule(sched, cfg.Location)
		default:
			sched.Notified = true
			rec.SetSchedule(sched, cfg.Location)
		}
	}
	fired := r
	settle(&r)
	err = s.store.Update(ctx, &r)
	if errors.Is(err, storage.ErrConflict) {
		// Edited while the card was being sent. Re-arm the fresh record only
		// when its schedule is still the one that fired.
		fresh, gerr := s.store.Get(ctx, r.ID)
		switch {
		case gerr != nil:
			err = gerr
		case sameSchedule(fired, fresh):
			settle(&fresh)
			err = s.store.Update(ctx, &fresh)
		default:
			rep.Conflicts++
			log.Info("reminder rescheduled while firing, keeping the new schedule")
			return
		}
	}
	switch {
	case err == nil:
		if broken || next == nil {
			rep.Retired++
		} else {
			rep.Rearmed++
		}
	case errors.Is(err, storage.ErrNotFound):
		log.Debug("reminder deleted while firing")
	case errors.Is(err, storage.ErrConflict):
		rep.Conflicts++
		log.Info("reminder changed again while firing, keeping the new version")
	default:
		log.Error("reminder update failed", logx.Err(err))
	}
}

func sameSchedule(a, b storage.Reminder) bool {
	return a.Date == b.Date && a.Time == b.Time && a.Repeat == b.Repeat && a.Notified == b.Notified
}
