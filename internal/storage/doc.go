// Package storage persists reminder records.
//
// Two drivers are available: "sqlite" (modernc.org/sqlite, the default) and
// "file" (a JSON snapshot rewritten atomically on every change). The store
// only keeps records; scheduling decisions belong to the sweep and the bot.
package storage
