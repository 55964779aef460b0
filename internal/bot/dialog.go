package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

var (
	errDialogExpired    = userError("This dialog has expired. Start again with /remind, /edit or /repeat.")
	errChangedMeanwhile = userError("This reminder was just changed elsewhere. Please try again.")
)

// handleDialog feeds a plain text message into the sender's open dialog.
func (b *Bot) handleDialog(ctx context.Context, req *Request) error {
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s, ok := b.sessions.Get(key)
	if !ok {
		return nil
	}
	cfg := b.cfg()
	now := b.now()

	var err error
	switch s.stage {
	case StageAwaitingDate:
		err = s.answerDate(req.Args, now, cfg.Location, b.catalog())
	case StageAwaitingTime:
		err = s.answerTime(req.Args, now, cfg.Location, b.catalog())
	case StageAwaitingRepeat:
		err = userError("Pick the repeat with the buttons above, then press Save.")
	default:
		b.sessions.Delete(key)
		return nil
	}
	b.sessions.Put(key, s)
	if err != nil {
		return err
	}
	return b.prompt(ctx, req, key, s)
}

// prompt asks the question of the session's current stage.
func (b *Bot) prompt(ctx context.Context, req *Request, key sessionKey, s *session) error {
	switch s.stage {
	case StageAwaitingDate:
		text := "When should I remind you? For example: 25.12, tomorrow evening, in 2 hours, 3."
		if s.mode != modeCreate {
			text += " Reply - to keep " + s.sched.Trigger.Date.String() + "."
		}
		b.reply(ctx, req, text)
	case StageAwaitingTime:
		text := "At what time? For example: 18:30, morning. Reply - for midnight."
		if s.mode != modeCreate {
			text = "At what time? Reply - to keep " + s.sched.Trigger.Time.String() + "."
		}
		b.reply(ctx, req, text)
	case StageAwaitingRepeat:
		ref, err := b.send(ctx, req, b.repeatCard(s))
		if err != nil {
			return err
		}
		s.keyboard = ref
		b.sessions.Put(key, s)
	}
	return nil
}

func (b *Bot) callbackRef(req *Request) transport.MessageRef {
	cb := req.Update.Callback
	return transport.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
}

func (b *Bot) answer(ctx context.Context, req *Request, text string) {
	if err := b.sender.AnswerCallback(ctx, req.Update.Callback.ID, text); err != nil {
		req.Log.Debug("answer callback failed", logx.Err(err))
	}
}

// repeatSession returns the open dialog if it is at the repeat stage.
func (b *Bot) repeatSession(ctx context.Context, req *Request) (sessionKey, *session, bool) {
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s, ok := b.sessions.Get(key)
	if !ok || s.stage != StageAwaitingRepeat {
		b.answer(ctx, req, string(errDialogExpired))
		return key, nil, false
	}
	return key, s, true
}

func (b *Bot) cbRepeatToggle(ctx context.Context, req *Request) error {
	key, s, ok := b.repeatSession(ctx, req)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(req.Payload)
	tok := remind.RepeatToken(n)
	if err != nil || !tok.Valid() {
		b.answer(ctx, req, "")
		return nil
	}
	s.toggle(tok)
	b.sessions.Put(key, s)

	b.answer(ctx, req, "")
	return b.repeatCard(s).Edit(ctx, b.sender, b.callbackRef(req))
}

func (b *Bot) repeatCard(s *session) tgui.Message {
	cat := b.catalog()
	return tgui.New().
		Title("🔁", "Repeat").
		KV("Text", tgui.TruncRunes(s.text, 200)).
		KV("When", s.sched.Trigger.String()).
		KV("Repeat", DescribeRule(s.sched.Repeat, cat)).
		Inline(repeatKeyboard(s.sched.Repeat, cat)).
		Build()
}

func (b *Bot) cbRepeatOnce(ctx context.Context, req *Request) error {
	key, s, ok := b.repeatSession(ctx, req)
	if !ok {
		return nil
	}
	s.once()
	return b.finish(ctx, req, key, s)
}

func (b *Bot) cbRepeatSave(ctx context.Context, req *Request) error {
	key, s, ok := b.repeatSession(ctx, req)
	if !ok {
		return nil
	}
	return b.finish(ctx, req, key, s)
}

// finish persists the dialog result and closes the dialog.
func (b *Bot) finish(ctx context.Context, req *Request, key sessionKey, s *session) error {
	r, err := b.persist(ctx, req, s)
	if err != nil {
		b.answer(ctx, req, "")
		return err
	}
	s.stage = StageDone
	b.sessions.Delete(key)
	b.answer(ctx, req, "Saved")
	req.Log.Info("reminder saved", logx.String("id", r.ID), logx.String("stage", s.stage.String()),
		logx.String("due", r.Date+" "+r.Time), logx.String("repeat", r.Repeat))
	return b.summary("✅", "Reminder saved", r).Edit(ctx, b.sender, b.callbackRef(req))
}

func (b *Bot) persist(ctx context.Context, req *Request, s *session) (storage.Reminder, error) {
	cfg := b.cfg()
	loc := cfg.Location
	if s.mode == modeCreate {
		sched := s.sched
		sched.Notified = false
		r := storage.Reminder{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, UserID: req.FromID, Text: s.text}
		r.SetSchedule(sched, loc)
		if err := b.store.Create(ctx, &r); err != nil {
			return r, fmt.Errorf("create reminder: %w", err)
		}
		return r, nil
	}

	r, err := b.store.Get(ctx, s.id)
	if errors.Is(err, storage.ErrNotFound) {
		return r, userError("This reminder no longer exists.")
	}
	if err != nil {
		return r, fmt.Errorf("load reminder: %w", err)
	}
	sched := s.sched
	if s.mode == modeRepeat {
		// Only the rule changes. A fired one-shot that gains a rule is
		// re-armed to its next occurrence.
		cur, err := r.Schedule()
		if err != nil && !errors.Is(err, remind.ErrCorruptedRule) {
			return r, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		cur.Repeat = s.sched.Repeat
		if cur.Notified && cur.Repeating() {
			cur.Trigger, _ = remind.NextAfter(cur.Trigger, cur.Repeat, b.now(), loc, cfg.MaxCatchUp)
			cur.Notified = false
		}
		sched = cur
	} else {
		sched.Notified = false
	}
	r.SetSchedule(sched, loc)
	if err := b.store.Update(ctx, &r); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return r, userError("This reminder no longer exists.")
		case errors.Is(err, storage.ErrConflict):
			return r, errChangedMeanwhile
		}
		return r, fmt.Errorf("update reminder: %w", err)
	}
	return r, nil
}
