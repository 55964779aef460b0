// Package bot is the command layer: it turns chat updates into reminder
// records using the engine in pkg/remind, and handles the buttons attached to
// fired reminders.
package bot

import (
	"context"
	"hash/fnv"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

// Settings are the reloadable parts of the bot configuration.
type Settings struct {
	Location   *time.Location
	Postpone   []time.Duration
	SessionTTL time.Duration
	// MaxCatchUp bounds the repeat steps taken when /repeat re-arms a fired
	// reminder, as the sweep does.
	MaxCatchUp int
}

type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  int64
	Command string // command word or "ns:action" of a callback
	Args    string // text after the command word, or the dialog answer
	Payload string // callback payload
	Log     logx.Logger
}

type Command struct {
	Name        string
	Description string
	Usage       string
	Handle      HandlerFunc
}

type CallbackRoute struct {
	NS     string
	Action string
	Handle HandlerFunc
}

type Bot struct {
	log      logx.Logger
	sender   transport.Sender
	store    storage.Store
	catalogs *remind.Registry
	now      func() time.Time

	settings atomic.Pointer[Settings]
	sessions *tgui.TTLMap[sessionKey, *session]
	// listings holds the record IDs in the order the chat's last /list
	// showed them, so numbers keep pointing at what the user saw.
	listings *tgui.TTLMap[int64, []string]

	commands  map[string]Command
	order     []string
	callbacks map[string]CallbackRoute
	dialog    HandlerFunc

	workers int
	queue   int
	timeout time.Duration
	dropped atomic.Uint64
}

type Option func(*Bot)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(b *Bot) { b.now = now } }

// WithWorkers sets the number of dispatch shards. Updates of one chat member
// always land on the same shard, so a dialog is processed in order.
func WithWorkers(n int) Option { return func(b *Bot) { b.workers = n } }

// WithHandlerTimeout bounds the handling of a single update. Default 15s.
func WithHandlerTimeout(d time.Duration) Option { return func(b *Bot) { b.timeout = d } }

func New(sender transport.Sender, store storage.Store, catalogs *remind.Registry, cfg Settings, log logx.Logger, opts ...Option) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		log:      log.With(logx.String("comp", "bot")),
		sender:   sender,
		store:    store,
		catalogs: catalogs,
		now:      time.Now,
		workers:  max(2, runtime.NumCPU()),
		queue:    64,
		timeout:  15 * time.Second,
	}
	for _, o := range opts {
		o(b)
	}
	b.workers = max(1, b.workers)
	cfg = normalizeSettings(cfg)
	b.settings.Store(&cfg)
	b.sessions = tgui.NewTTLMap[sessionKey, *session](cfg.SessionTTL).WithClock(b.now)
	b.listings = tgui.NewTTLMap[int64, []string](cfg.SessionTTL).WithClock(b.now)
	b.register()
	return b
}

func normalizeSettings(cfg Settings) Settings {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.Postpone) == 0 {
		cfg.Postpone = []time.Duration{15 * time.Minute, time.Hour, 3 * time.Hour, 24 * time.Hour}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	if cfg.MaxCatchUp <= 0 {
		cfg.MaxCatchUp = 10000
	}
	return cfg
}

// Apply swaps in reloaded settings. Dialogs in progress keep their state.
func (b *Bot) Apply(cfg Settings) {
	cfg = normalizeSettings(cfg)
	b.settings.Store(&cfg)
	b.sessions.SetTTL(cfg.SessionTTL)
	b.listings.SetTTL(cfg.SessionTTL)
}

func (b *Bot) cfg() Settings { return *b.settings.Load() }

func (b *Bot) catalog() *remind.Catalog {
	if b.catalogs == nil {
		return nil
	}
	return b.catalogs.Catalog()
}

func (b *Bot) register() {
	mw := func(h HandlerFunc) HandlerFunc {
		return Chain(h, MWPanicRecover(), MWRequestLog(), MWReplyOnError(b), MWTimeout(b.timeout))
	}
	cmds := []Command{
		{Name: "remind", Description: "create a reminder", Usage: "/remind <text> or /remind <when> -- <text>", Handle: b.cmdRemind},
		{Name: "list", Description: "list reminders in this chat", Usage: "/list", Handle: b.cmdList},
		{Name: "edit", Description: "change date and time", Usage: "/edit <n>", Handle: b.cmdEdit},
		{Name: "repeat", Description: "change the repeat rule", Usage: "/repeat <n>", Handle: b.cmdRepeat},
		{Name: "delete", Description: "delete a reminder", Usage: "/delete <n>", Handle: b.cmdDelete},
		{Name: "cancel", Description: "abort the current dialog", Usage: "/cancel", Handle: b.cmdCancel},
		{Name: "help", Description: "show help", Usage: "/help", Handle: b.cmdHelp},
	}
	b.commands = map[string]Command{"start": {Name: "start", Handle: mw(b.cmdHelp)}}
	for _, c := range cmds {
		c.Handle = mw(c.Handle)
		b.commands[c.Name] = c
		b.order = append(b.order, c.Name)
	}

	routes := []CallbackRoute{
		{NS: nsRepeat, Action: actToggle, Handle: b.cbRepeatToggle},
		{NS: nsRepeat, Action: actOnce, Handle: b.cbRepeatOnce},
		{NS: nsRepeat, Action: actSave, Handle: b.cbRepeatSave},
		{NS: nsList, Action: actPage, Handle: b.cbListPage},
		{NS: reminderNS, Action: reminderPostpone, Handle: b.cbPostpone},
		{NS: reminderNS, Action: reminderDone, Handle: b.cbDone},
	}
	b.callbacks = map[string]CallbackRoute{}
	for _, r := range routes {
		r.Handle = mw(r.Handle)
		b.callbacks[r.NS+":"+r.Action] = r
	}
	b.dialog = mw(b.handleDialog)
}

// MenuCommands lists the commands shown in the platform menu.
func (b *Bot) MenuCommands() []transport.BotCommand {
	out := make([]transport.BotCommand, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, transport.BotCommand{Command: name, Description: b.commands[name].Description})
	}
	return out
}

// Run dispatches updates until ctx ends or updates is closed.
func (b *Bot) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(b.log))
	shards := make([]chan transport.Update, b.workers)
	for i := range shards {
		shards[i] = make(chan transport.Update, b.queue)
		ch := shards[i]
		sup.GoRestart("bot.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-ch:
					if !ok {
						return nil
					}
					b.Handle(c, up)
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	if up, ok := b.sender.(transport.CommandMenuUpdater); ok {
		sup.Go0("bot.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, b.MenuCommands()); err != nil {
				b.log.Warn("menu update failed", logx.Err(err))
			}
		})
	}
	b.log.Info("dispatcher started", logx.Int("workers", b.workers), logx.Int("queue", b.queue))

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		if n := b.dropped.Load(); n > 0 {
			b.log.Warn("updates dropped on full queue", logx.Uint64("count", n))
		}
		b.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case shards[b.shard(up)] <- up:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

func (b *Bot) shard(up transport.Update) int {
	var chat, from int64
	switch {
	case up.Message != nil:
		chat, from = up.Message.ChatID, up.Message.FromID
	case up.Callback != nil:
		chat, from = up.Callback.ChatID, up.Callback.FromID
	}
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(chat, 10) + ":" + strconv.FormatInt(from, 10)))
	return int(h.Sum32() % uint32(b.workers))
}

// Handle routes a single update synchronously.
func (b *Bot) Handle(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil {
			b.routeMessage(ctx, up)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			b.routeCallback(ctx, up)
		}
	}
}

func (b *Bot) routeMessage(ctx context.Context, up transport.Update) {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	req := &Request{
		Update: up,
		Chat:   transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID: msg.FromID,
	}

	if !strings.HasPrefix(text, "/") {
		if _, ok := b.sessions.Get(sessionKey{chat: msg.ChatID, user: msg.FromID}); !ok {
			return
		}
		req.Command = "dialog"
		req.Args = text
		req.Log = b.requestLog(req)
		_ = b.dialog(ctx, req)
		return
	}

	word, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	req.Command = word
	req.Args = strings.TrimSpace(rest)
	req.Log = b.requestLog(req)

	cmd, ok := b.commands[word]
	if !ok {
		b.reply(ctx, req, "Unknown command. Try /help")
		return
	}
	_ = cmd.Handle(ctx, req)
}

func (b *Bot) routeCallback(ctx context.Context, up transport.Update) {
	cb := up.Callback
	req := &Request{
		Update: up,
		Chat:   transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID: cb.FromID,
	}
	ns, action, payload, ok := tgui.ParseData(cb.Data)
	route, found := b.callbacks[ns+":"+action]
	if !ok || !found {
		_ = b.sender.AnswerCallback(ctx, cb.ID, "")
		return
	}
	req.Command = ns + ":" + action
	req.Payload = payload
	req.Log = b.requestLog(req)
	_ = route.Handle(ctx, req)
}

func (b *Bot) requestLog(req *Request) logx.Logger {
	return b.log.With(
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int("thread_id", req.Chat.ThreadID),
		logx.Int64("from_id", req.FromID),
	)
}

func (b *Bot) reply(ctx context.Context, req *Request, text string) {
	if _, err := b.sender.SendText(ctx, req.Chat, text, &transport.SendOptions{DisablePreview: true}); err != nil {
		req.Log.Warn("reply failed", logx.Err(err))
	}
}

func (b *Bot) send(ctx context.Context, req *Request, msg tgui.Message) (transport.MessageRef, error) {
	return msg.Send(ctx, b.sender, req.Chat)
}
