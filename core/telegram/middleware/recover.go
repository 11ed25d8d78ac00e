package middleware

import (
	"runtime/debug"

	"github.com/m3rciful/relaybot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RecoverOptions tunes panic recovery behaviour.
type RecoverOptions struct {
	// Apology is sent to the user when a handler panics; empty disables the reply.
	Apology string
}

// Recover catches panics in handlers so a single bad update cannot crash
// the bot or destroy other users' sessions. The triggering user gets a
// generic apology; the fault is logged with the event detail.
func Recover(opts RecoverOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					attrs := []slog.Attr{
						slog.String("event", "tg.panic"),
						slog.Any("err", r),
						slog.String("stack", string(debug.Stack())),
					}
					if sender := c.Sender(); sender != nil {
						attrs = append(attrs, slog.Int64("user_id", sender.ID))
					}
					logger.TG.LogAttrs(logger.Background(), slog.LevelError, "panic recovered", attrs...)
					if opts.Apology != "" {
						_ = c.Send(opts.Apology)
					}
				}
			}()
			return next(c)
		}
	}
}
