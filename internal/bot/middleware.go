package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"remindbot/pkg/logx"
	"remindbot/pkg/remind"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Log.Error("panic recovered", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.String("cmd", req.Command),
				logx.Duration("dur", d),
			}
			switch {
			case err != nil:
				req.Log.Warn("request failed", append(fields, logx.Err(err))...)
			case d >= 750*time.Millisecond:
				req.Log.Info("request ok", fields...)
			default:
				req.Log.Debug("request ok", fields...)
			}
			return err
		}
	}
}

// MWReplyOnError tells the user about failures. Input errors from the
// resolver are explained and swallowed; anything else gets a generic reply
// and is passed on to be logged.
func MWReplyOnError(b *Bot) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err == nil {
				return nil
			}
			var pe *remind.ParseError
			if errors.As(err, &pe) {
				b.reply(ctx, req, userMessage(pe))
				return nil
			}
			var ue userError
			if errors.As(err, &ue) {
				b.reply(ctx, req, string(ue))
				return nil
			}
			b.reply(ctx, req, "Something went wrong, please try again.")
			return err
		}
	}
}

// userError is a failure whose text is meant for the chat.
type userError string

func (e userError) Error() string { return string(e) }

func userMessage(pe *remind.ParseError) string {
	switch pe.Kind {
	case remind.OutOfRange:
		return fmt.Sprintf("%q is not a valid date or time.", pe.Input)
	case remind.CorruptedRule:
		return "The repeat rule of this reminder is damaged, so repetition was turned off."
	default:
		return fmt.Sprintf("I could not understand %q. Try 25.12 18:00, tomorrow evening, in 2 hours or 3.", pe.Input)
	}
}
