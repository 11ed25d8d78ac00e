// Package access implements the bot's allow-list gate.
package access

import (
	"strconv"
	"strings"

	"github.com/m3rciful/relaybot/core/logger"
	"log/slog"
)

// Allowlist holds the set of approved Telegram user IDs. An empty set means
// open access: every user is approved.
type Allowlist struct {
	ids map[int64]struct{}
}

// Parse builds an Allowlist from a comma-separated list of integer user IDs.
// An empty value yields open mode. A malformed entry is not silently
// dropped: the whole list is treated as open mode with a logged warning,
// so a typo never locks the operator out of their own bot.
func Parse(raw string) *Allowlist {
	ctx := logger.Background()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		logger.Info(ctx, "svc.relay", "access.open")
		return &Allowlist{}
	}

	ids := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn(ctx, "svc.relay", "access.malformed",
				slog.String("payload", logger.SanitizeLimit(part, 64)),
				slog.String("cause", "falling back to open access"),
			)
			return &Allowlist{}
		}
		ids[id] = struct{}{}
	}
	if len(ids) == 0 {
		logger.Info(ctx, "svc.relay", "access.open")
		return &Allowlist{}
	}

	logger.Info(ctx, "svc.relay", "access.restricted",
		slog.Int("count", len(ids)),
	)
	return &Allowlist{ids: ids}
}

// Approved reports whether the user may use the bot.
func (a *Allowlist) Approved(userID int64) bool {
	if a == nil || len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[userID]
	return ok
}

// Open reports whether the allow-list is in open mode.
func (a *Allowlist) Open() bool {
	return a == nil || len(a.ids) == 0
}
