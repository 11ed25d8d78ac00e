package middleware

import tele "gopkg.in/telebot.v4"

// Approver reports whether a user identifier may use the bot.
type Approver interface {
	Approved(userID int64) bool
}

// AccessOptions defines how allow-list checks behave.
type AccessOptions struct {
	Approver Approver
	OnReject tele.HandlerFunc
}

// Allowlist ensures only approved users can invoke downstream handlers.
// A nil Approver means open access.
func Allowlist(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Approver == nil {
				return next(c)
			}
			sender := c.Sender()
			if sender == nil || !opts.Approver.Approved(sender.ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
