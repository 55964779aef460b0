package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"remindbot/pkg/logx"
)

// fileStore keeps every reminder in memory and rewrites a JSON snapshot
// (temp file + rename) after each change. Suitable for small deployments.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	items  map[string]Reminder
	closed bool
}

type snapshot struct {
	Version   int        `json:"version"`
	Reminders []Reminder `json:"reminders"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	s := &fileStore{log: log, path: cfg.Path, items: map[string]Reminder{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	log.Info("file store opened", logx.String("path", cfg.Path), logx.Int("reminders", len(s.items)))
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("storage: decode %s: %w", s.path, err)
	}
	for _, r := range snap.Reminders {
		s.items[r.ID] = r
	}
	return nil
}

// flushLocked writes the snapshot atomically. Callers hold s.mu.
func (s *fileStore) flushLocked() error {
	snap := snapshot{Version: 1, Reminders: make([]Reminder, 0, len(s.items))}
	for _, r := range s.items {
		snap.Reminders = append(snap.Reminders, r)
	}
	sortByDue(snap.Reminders)

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// mutate applies fn under the lock and persists the result, rolling the
// in-memory change back when the write fails.
func (s *fileStore) mutate(fn func(items map[string]Reminder) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev := make(map[string]Reminder, len(s.items))
	for k, v := range s.items {
		prev[k] = v
	}
	if err := fn(s.items); err != nil {
		return err
	}
	if err := s.flushLocked(); err != nil {
		s.items = prev
		s.log.Error("snapshot write failed", logx.String("path", s.path), logx.Err(err))
		return err
	}
	return nil
}

func (s *fileStore) Create(_ context.Context, r *Reminder) error {
	stampNew(r)
	return s.mutate(func(items map[string]Reminder) error {
		if _, dup := items[r.ID]; dup {
			return fmt.Errorf("storage: duplicate id %s", r.ID)
		}
		items[r.ID] = *r
		return nil
	})
}

func (s *fileStore) Get(_ context.Context, id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Reminder{}, ErrClosed
	}
	r, ok := s.items[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *fileStore) Update(_ context.Context, r *Reminder) error {
	read := r.UpdatedAt
	next := *r
	stampUpdate(&next)
	err := s.mutate(func(items map[string]Reminder) error {
		old, ok := items[r.ID]
		if !ok {
			return ErrNotFound
		}
		if !old.UpdatedAt.Equal(read) {
			return ErrConflict
		}
		next.CreatedAt = old.CreatedAt
		items[r.ID] = next
		return nil
	})
	if err != nil {
		return err
	}
	*r = next
	return nil
}

func (s *fileStore) Delete(_ context.Context, id string) error {
	return s.mutate(func(items map[string]Reminder) error {
		if _, ok := items[id]; !ok {
			return ErrNotFound
		}
		delete(items, id)
		return nil
	})
}

func (s *fileStore) ListByChat(_ context.Context, chatID int64) ([]Reminder, error) {
	return s.filter(0, func(r Reminder) bool { return r.ChatID == chatID })
}

func (s *fileStore) ListDue(_ context.Context, now time.Time, limit int) ([]Reminder, error) {
	return s.filter(limit, func(r Reminder) bool { return !r.Notified && !r.DueAt.After(now) })
}

func (s *fileStore) filter(limit int, keep func(Reminder) bool) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []Reminder
	for _, r := range s.items {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortByDue(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
