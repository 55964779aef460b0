package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/storage"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

const listPageSize = 10

const (
	nsList  = "lst"
	actPage = "page"
)

const remindUsage = "Usage: /remind <text>, or /remind <when> -- <text>"

func (b *Bot) cmdRemind(ctx context.Context, req *Request) error {
	if req.Args == "" {
		return userError(remindUsage)
	}
	if when, text, ok := strings.Cut(req.Args, "--"); ok {
		return b.quickRemind(ctx, req, strings.TrimSpace(when), strings.TrimSpace(text))
	}
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s := newCreateSession(req.Args)
	b.sessions.Put(key, s)
	return b.prompt(ctx, req, key, s)
}

// quickRemind creates a one-shot reminder without a dialog.
func (b *Bot) quickRemind(ctx context.Context, req *Request, when, text string) error {
	if when == "" || text == "" {
		return userError(remindUsage)
	}
	cfg := b.cfg()
	res, err := remind.Resolve(when, b.now(), cfg.Location, b.catalog())
	if err != nil {
		return err
	}
	r := storage.Reminder{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, UserID: req.FromID, Text: text}
	r.SetSchedule(remind.Schedule{}.Apply(res), cfg.Location)
	if err := b.store.Create(ctx, &r); err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	req.Log.Info("reminder created", logx.String("id", r.ID), logx.String("due", r.Date+" "+r.Time))
	_, err = b.send(ctx, req, b.summary("✅", "Reminder saved", r))
	return err
}

func (b *Bot) cmdList(ctx context.Context, req *Request) error {
	page := 0
	if n, err := strconv.Atoi(req.Args); err == nil {
		page = n - 1
	}
	msg, err := b.renderList(ctx, req.Chat.ChatID, page)
	if err != nil {
		return err
	}
	_, err = b.send(ctx, req, msg)
	return err
}

func (b *Bot) renderList(ctx context.Context, chatID int64, index int) (tgui.Message, error) {
	rs, err := b.store.ListByChat(ctx, chatID)
	if err != nil {
		return tgui.Message{}, fmt.Errorf("list reminders: %w", err)
	}
	if len(rs) == 0 {
		return tgui.New().Line("No reminders in this chat. Create one with /remind").Build(), nil
	}
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	b.listings.Put(chatID, ids)

	cat := b.catalog()
	p := tgui.Paginate(rs, index, listPageSize)
	mb := tgui.New().Title("📋", fmt.Sprintf("Reminders (%d)", len(rs)))
	for i, r := range p.Items {
		line := tgui.JoinH(" ",
			tgui.B(strconv.Itoa(p.From+i+1)+"."),
			tgui.Code(r.Date+" "+shortClock(r.Time)),
			tgui.Esc(tgui.TruncRunes(r.Text, 60)),
			tgui.I("("+b.ruleLabel(r, cat)+")"),
		)
		mb.HTML(line)
	}
	if p.Pages > 1 {
		var nav []tele.Btn
		if p.HasPrev {
			nav = append(nav, tgui.Btn("‹", tgui.Data(nsList, actPage, strconv.Itoa(p.Index-1))))
		}
		nav = append(nav, tgui.Btn(p.Label(), tgui.Data(nsList, actPage, strconv.Itoa(p.Index))))
		if p.HasNext {
			nav = append(nav, tgui.Btn("›", tgui.Data(nsList, actPage, strconv.Itoa(p.Index+1))))
		}
		mb.Inline(tgui.NewInline().Row(nav...))
	}
	return mb.Build(), nil
}

// shortClock drops the seconds of a persisted "15:04:05" time.
func shortClock(t string) string {
	if len(t) == 8 && strings.HasSuffix(t, ":00") {
		return t[:5]
	}
	return t
}

func (b *Bot) ruleLabel(r storage.Reminder, cat *remind.Catalog) string {
	rule, err := remind.DecodeRule(r.Repeat)
	if err != nil {
		return "repeat damaged"
	}
	label := DescribeRule(rule, cat)
	if r.Notified {
		label += ", fired"
	}
	return label
}

// pick resolves the 1-based list number in req.Args to a record of the chat.
// Numbers refer to the chat's last /list while it is fresh, since the sweep
// reorders records as it re-arms them; otherwise to the current order.
func (b *Bot) pick(ctx context.Context, req *Request, usage string) (storage.Reminder, error) {
	n, err := strconv.Atoi(strings.TrimSpace(req.Args))
	if err != nil {
		return storage.Reminder{}, userError(usage)
	}
	missing := userError(fmt.Sprintf("There is no reminder #%d. See /list", n))

	if ids, ok := b.listings.Get(req.Chat.ChatID); ok {
		if n < 1 || n > len(ids) {
			return storage.Reminder{}, missing
		}
		r, err := b.store.Get(ctx, ids[n-1])
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return storage.Reminder{}, userError(fmt.Sprintf("Reminder #%d no longer exists. See /list", n))
		case err != nil:
			return storage.Reminder{}, fmt.Errorf("load reminder: %w", err)
		}
		return r, nil
	}

	rs, err := b.store.ListByChat(ctx, req.Chat.ChatID)
	if err != nil {
		return storage.Reminder{}, fmt.Errorf("list reminders: %w", err)
	}
	if n < 1 || n > len(rs) {
		return storage.Reminder{}, missing
	}
	return rs[n-1], nil
}

// loadSchedule reads r's schedule. A damaged repeat rule is reported to the
// user and dropped so the reminder stays editable.
func (b *Bot) loadSchedule(ctx context.Context, req *Request, r storage.Reminder) (remind.Schedule, error) {
	sched, err := r.Schedule()
	var pe *remind.ParseError
	switch {
	case err == nil:
	case errors.As(err, &pe) && pe.Kind == remind.CorruptedRule:
		req.Log.Warn("corrupted repeat rule", logx.String("id", r.ID), logx.String("repeat", r.Repeat))
		b.reply(ctx, req, userMessage(pe))
	default:
		return remind.Schedule{}, fmt.Errorf("reminder %s: %w", r.ID, err)
	}
	return sched, nil
}

func (b *Bot) cmdEdit(ctx context.Context, req *Request) error {
	r, err := b.pick(ctx, req, "Usage: /edit <n>, where n is the number shown by /list")
	if err != nil {
		return err
	}
	sched, err := b.loadSchedule(ctx, req, r)
	if err != nil {
		return err
	}
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s := newEditSession(r.ID, r.Text, sched)
	b.sessions.Put(key, s)
	return b.prompt(ctx, req, key, s)
}

func (b *Bot) cmdRepeat(ctx context.Context, req *Request) error {
	r, err := b.pick(ctx, req, "Usage: /repeat <n>, where n is the number shown by /list")
	if err != nil {
		return err
	}
	sched, err := b.loadSchedule(ctx, req, r)
	if err != nil {
		return err
	}
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s := newRepeatSession(r.ID, r.Text, sched)
	b.sessions.Put(key, s)
	return b.prompt(ctx, req, key, s)
}

func (b *Bot) cmdDelete(ctx context.Context, req *Request) error {
	r, err := b.pick(ctx, req, "Usage: /delete <n>, where n is the number shown by /list")
	if err != nil {
		return err
	}
	if err := b.store.Delete(ctx, r.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete reminder: %w", err)
	}
	req.Log.Info("reminder deleted", logx.String("id", r.ID))
	_, err = b.send(ctx, req, tgui.New().Line("🗑 Deleted: "+tgui.TruncRunes(r.Text, 60)).Build())
	return err
}

func (b *Bot) cmdCancel(ctx context.Context, req *Request) error {
	key := sessionKey{chat: req.Chat.ChatID, user: req.FromID}
	s, ok := b.sessions.Get(key)
	if !ok {
		b.reply(ctx, req, "Nothing to cancel.")
		return nil
	}
	b.sessions.Delete(key)
	if s.keyboard.MessageID != 0 {
		// Drop the repeat buttons so they cannot be pressed later.
		_ = tgui.New().Line("Cancelled.").Build().Edit(ctx, b.sender, s.keyboard)
	}
	b.reply(ctx, req, "Cancelled.")
	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	mb := tgui.New().Title("⏰", "Reminder bot")
	for _, name := range b.order {
		c := b.commands[name]
		mb.HTML(tgui.JoinH(" ", tgui.Code(c.Usage), tgui.Esc(c.Description)))
	}
	mb.Blank().
		Line("Dates and times:").
		Bullets(
			"25.12, 25.12.2030, 18:30, 25.12 18:30",
			"today, tomorrow, friday, evening, tomorrow morning",
			"in 10 minutes, in 2 hours, in 3 days",
			"3 (three days from now), -1 (yesterday)",
		).
		Line("Reply - to keep the current date or time while editing.")
	_, err := b.send(ctx, req, mb.Build())
	return err
}

// summary renders a stored reminder.
func (b *Bot) summary(emoji, title string, r storage.Reminder) tgui.Message {
	return tgui.New().
		Title(emoji, title).
		KV("Text", tgui.TruncRunes(r.Text, 200)).
		KV("When", r.Date+" "+r.Time).
		KV("Repeat", b.ruleLabel(r, b.catalog())).
		Build()
}
