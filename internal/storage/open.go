package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindbot/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"))

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = "./data/remindbot.db"
		}
		return openSQLite(cfg, log)
	case "file":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = "./data/reminders.json"
		}
		return openFile(cfg, log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

// stampNew fills the ID and timestamps of a record about to be created.
func stampNew(r *Reminder) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	stampUpdate(r)
}

// stampUpdate normalizes timestamps to UTC milliseconds, the precision both
// drivers persist. The new UpdatedAt is always later than the one r was read
// with, so it identifies this write.
func stampUpdate(r *Reminder) {
	read := r.UpdatedAt.UTC().Truncate(time.Millisecond)
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(read) {
		now = read.Add(time.Millisecond)
	}
	r.UpdatedAt = now
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Millisecond)
	r.DueAt = r.DueAt.UTC().Truncate(time.Millisecond)
}
