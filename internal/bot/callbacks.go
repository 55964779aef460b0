package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"remindbot/internal/storage"
	"remindbot/internal/sweep"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

// Buttons under a fired reminder are rendered by the sweep.
const (
	reminderNS       = sweep.CallbackNS
	reminderPostpone = sweep.ActionPostpone
	reminderDone     = sweep.ActionDone
)

func (b *Bot) cbListPage(ctx context.Context, req *Request) error {
	index, err := strconv.Atoi(req.Payload)
	if err != nil {
		b.answer(ctx, req, "")
		return nil
	}
	msg, err := b.renderList(ctx, req.Chat.ChatID, index)
	b.answer(ctx, req, "")
	if err != nil {
		return err
	}
	return msg.Edit(ctx, b.sender, b.callbackRef(req))
}

// cbPostpone moves a fired reminder to now plus the chosen duration.
func (b *Bot) cbPostpone(ctx context.Context, req *Request) error {
	id, d, ok := sweep.ParsePostponePayload(req.Payload)
	if !ok {
		b.answer(ctx, req, "")
		return nil
	}
	r, err := b.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.answer(ctx, req, "This reminder no longer exists.")
		return nil
	}
	if err != nil {
		b.answer(ctx, req, "")
		return fmt.Errorf("load reminder: %w", err)
	}

	loc := b.cfg().Location
	sched, err := r.Schedule()
	if err != nil && !errors.Is(err, remind.ErrCorruptedRule) {
		b.answer(ctx, req, "")
		return fmt.Errorf("reminder %s: %w", r.ID, err)
	}
	sched.Trigger = remind.Postpone(b.now(), d, loc)
	sched.Notified = false
	r.SetSchedule(sched, loc)
	if err := b.store.Update(ctx, &r); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			b.answer(ctx, req, "This reminder no longer exists.")
			return nil
		case errors.Is(err, storage.ErrConflict):
			b.answer(ctx, req, string(errChangedMeanwhile))
			return nil
		}
		b.answer(ctx, req, "")
		return fmt.Errorf("update reminder: %w", err)
	}
	req.Log.Info("reminder postponed", logx.String("id", r.ID), logx.Duration("by", d))

	when := sched.Trigger.String()
	b.answer(ctx, req, "Postponed to "+when)
	msg := tgui.New().
		Title("⏰", "Reminder").
		Line(r.Text).
		Blank().
		HTML(tgui.JoinH(" ", tgui.I("postponed to"), tgui.Code(when))).
		Build()
	return msg.Edit(ctx, b.sender, b.callbackRef(req))
}

// cbDone acknowledges a fired reminder. A fired one-shot is retired and
// removed; a repeating one stays armed for its next occurrence.
func (b *Bot) cbDone(ctx context.Context, req *Request) error {
	id := req.Payload
	r, err := b.store.Get(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.answer(ctx, req, "Done")
		return nil
	case err != nil:
		b.answer(ctx, req, "")
		return fmt.Errorf("load reminder: %w", err)
	}

	if r.Notified && r.Repeat == "" {
		if err := b.store.Delete(ctx, r.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			b.answer(ctx, req, "")
			return fmt.Errorf("delete reminder: %w", err)
		}
		req.Log.Info("reminder retired", logx.String("id", r.ID))
	}
	b.answer(ctx, req, "Done")
	msg := tgui.New().Title("✅", "Done").Line(r.Text).Build()
	return msg.Edit(ctx, b.sender, b.callbackRef(req))
}
