// Package tgui holds the Telegram HTML and inline keyboard helpers used by
// the bot and the sweep: escaping, "ns:action:payload" callback data, a
// message builder, list paging and a TTL map for dialog sessions.
package tgui
