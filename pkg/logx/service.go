package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Chat    ChatConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// ChatConfig controls forwarding of log records to a chat.
type ChatConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Sender delivers a plain-text log line to a chat. The Telegram adapter
// satisfies it through a small closure in the app wiring.
type Sender interface {
	SendLog(ctx context.Context, chatID int64, threadID int, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, threadID int, text string) error

func (f SenderFunc) SendLog(ctx context.Context, chatID int64, threadID int, text string) error {
	return f(ctx, chatID, threadID, text)
}

const chatQueueSize = 256

// Service owns the root zerolog logger and its sinks and swaps them on Apply.
type Service struct {
	mu   sync.Mutex
	root atomic.Pointer[zerolog.Logger]
	file *os.File

	sender   Sender
	chat     ChatConfig
	minLevel Level
	limiter  *rate.Limiter
	queue    chan chatLine
	dropped  atomic.Uint64

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type chatLine struct {
	chatID   int64
	threadID int
	text     string
}

// NewService applies cfg and returns the service with its root Logger.
// sender may be nil; the chat sink then stays silent until SetSender.
func NewService(cfg Config, sender Sender) (*Service, Logger) {
	setGlobals()
	s := &Service{sender: sender, queue: make(chan chatLine, chatQueueSize)}
	boot := zerolog.New(consoleWriter(os.Stdout)).Level(ParseLevel(cfg.Level, LevelInfo)).With().Timestamp().Logger()
	s.root.Store(&boot)
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetSender installs the chat sender once the transport is up.
func (s *Service) SetSender(sender Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// Dropped returns how many chat lines were discarded because the queue was
// full or the rate limit was exceeded.
func (s *Service) Dropped() uint64 { return s.dropped.Load() }

// Apply rebuilds the sinks from cfg. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chat = cfg.Chat
	s.minLevel = ParseLevel(cfg.Chat.MinLevel, LevelWarn)
	rps := cfg.Chat.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./remindbot.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Chat.Enabled {
		s.startOnce.Do(s.startChatWorker)
		writers = append(writers, &chatWriter{svc: s})
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the chat worker and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func (s *Service) startChatWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ln := <-s.queue:
				s.mu.Lock()
				sender := s.sender
				s.mu.Unlock()
				if sender != nil {
					_ = sender.SendLog(ctx, ln.chatID, ln.threadID, ln.text)
				}
			}
		}
	}()
}

// offer queues a formatted record for the chat sink without blocking.
func (s *Service) offer(level Level, p []byte) {
	s.mu.Lock()
	chat, minLvl, lim := s.chat, s.minLevel, s.limiter
	s.mu.Unlock()

	if !chat.Enabled || chat.ChatID == 0 || level < minLvl {
		return
	}
	if lim != nil && !lim.Allow() {
		s.dropped.Add(1)
		return
	}
	text := formatChatRecord(p)
	if text == "" {
		return
	}
	select {
	case s.queue <- chatLine{chatID: chat.ChatID, threadID: chat.ThreadID, text: text}:
	default:
		s.dropped.Add(1)
	}
}

type chatWriter struct{ svc *Service }

func (w *chatWriter) Write(p []byte) (int, error) { return w.WriteLevel(LevelInfo, p) }

func (w *chatWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.svc.offer(level, p)
	return len(p), nil
}
