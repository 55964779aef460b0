// Package logx is remindbot's structured logging layer on top of zerolog.
//
// Console output stays short (time, level, file:line). The optional file sink
// is JSON. The optional chat sink forwards records at or above a minimum level
// to a chat through a Sender, rate limited and never blocking the caller.
package logx
