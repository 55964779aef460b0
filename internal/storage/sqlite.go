package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

const columns = `id, chat_id, thread_id, user_id, text, date, time, repeat, notified, due_at, created_at, updated_at`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway and this keeps the
	// pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}
	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	log.Info("sqlite store opened", logx.String("path", cfg.Path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Create(ctx context.Context, r *Reminder) error {
	stampNew(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(`+columns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.ChatID, r.ThreadID, r.UserID, r.Text, r.Date, r.Time, r.Repeat, r.Notified,
		r.DueAt.UnixMilli(), r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *sqliteStore) Update(ctx context.Context, r *Reminder) error {
	read := r.UpdatedAt
	next := *r
	stampUpdate(&next)
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET chat_id=?, thread_id=?, user_id=?, text=?, date=?, time=?, repeat=?,
		 notified=?, due_at=?, updated_at=? WHERE id=? AND updated_at=?`,
		next.ChatID, next.ThreadID, next.UserID, next.Text, next.Date, next.Time, next.Repeat,
		next.Notified, next.DueAt.UnixMilli(), next.UpdatedAt.UnixMilli(), next.ID, read.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM reminders WHERE id = ?`, next.ID).Scan(&exists)
		switch {
		case err != nil:
			return err
		case exists == 0:
			return ErrNotFound
		default:
			return ErrConflict
		}
	}
	*r = next
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *sqliteStore) ListByChat(ctx context.Context, chatID int64) ([]Reminder, error) {
	return s.query(ctx,
		`SELECT `+columns+` FROM reminders WHERE chat_id = ? ORDER BY due_at, created_at, id`, chatID)
}

func (s *sqliteStore) ListDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx,
		`SELECT `+columns+` FROM reminders WHERE notified = 0 AND due_at <= ?
		 ORDER BY due_at, created_at, id LIMIT ?`, now.UnixMilli(), limit)
}

func (s *sqliteStore) query(ctx context.Context, q string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanReminder(sc scanner) (Reminder, error) {
	var r Reminder
	var due, created, updated int64
	err := sc.Scan(&r.ID, &r.ChatID, &r.ThreadID, &r.UserID, &r.Text, &r.Date, &r.Time, &r.Repeat,
		&r.Notified, &due, &created, &updated)
	if err != nil {
		return Reminder{}, err
	}
	r.DueAt = time.UnixMilli(due).UTC()
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return r, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
