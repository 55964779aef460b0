package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"remindbot/pkg/remind"
)

var (
	ErrNotFound = errors.New("storage: reminder not found")
	ErrClosed   = errors.New("storage: store closed")
	// ErrConflict means the record changed after it was read.
	ErrConflict = errors.New("storage: reminder changed concurrently")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default): SQLite database file
//   - "file": JSON snapshot file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// Reminder is one persisted reminder. Date, Time and Repeat hold the
// engine's values in their persisted text forms; DueAt is the same trigger as
// an absolute instant and is what ListDue filters on.
type Reminder struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Repeat    string    `json:"repeat,omitempty"`
	Notified  bool      `json:"notified"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the reminder persistence API.
type Store interface {
	// Create assigns an ID when r.ID is empty and stamps the timestamps.
	Create(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id string) (Reminder, error)
	// Update replaces an existing record if it is unchanged since r was read,
	// judged by r.UpdatedAt. It returns ErrNotFound if the record is gone and
	// ErrConflict if another write came first. On success r carries the new
	// UpdatedAt.
	Update(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id string) error
	// ListByChat returns a chat's reminders ordered by due time.
	ListByChat(ctx context.Context, chatID int64) ([]Reminder, error)
	// ListDue returns up to limit unnotified reminders due at or before now,
	// earliest first. limit <= 0 means no limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	Close() error
}

// Trigger parses the persisted date and time.
func (r Reminder) Trigger() (remind.Trigger, error) {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return remind.Trigger{}, fmt.Errorf("reminder %s: date: %w", r.ID, err)
	}
	c, err := time.Parse(timeLayout, r.Time)
	if err != nil {
		return remind.Trigger{}, fmt.Errorf("reminder %s: time: %w", r.ID, err)
	}
	return remind.Trigger{Date: remind.DateOf(d), Time: remind.TimeOfDayOf(c)}, nil
}

// Schedule returns the engine view of r. A repeat string that does not decode
// yields a *remind.ParseError of kind CorruptedRule; the trigger is still
// returned so callers can disable repetition and carry on.
func (r Reminder) Schedule() (remind.Schedule, error) {
	tr, err := r.Trigger()
	if err != nil {
		return remind.Schedule{}, err
	}
	s := remind.Schedule{Trigger: tr, Notified: r.Notified}
	rule, err := remind.DecodeRule(r.Repeat)
	if err != nil {
		return s, err
	}
	s.Repeat = rule
	return s, nil
}

// SetSchedule stores s on r and recomputes DueAt in loc.
func (r *Reminder) SetSchedule(s remind.Schedule, loc *time.Location) {
	r.Date = s.Trigger.Date.String()
	r.Time = s.Trigger.Time.String()
	r.Repeat = s.Repeat.Encode()
	r.Notified = s.Notified
	r.DueAt = s.Trigger.In(loc).UTC()
}

// sortByDue orders reminders by due time, then creation, then ID.
func sortByDue(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.DueAt.Equal(b.DueAt) {
			return a.DueAt.Before(b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
