// Package journal persists a best-effort audit trail of relay attempts.
//
// The journal is optional: when Postgres is not configured the store is
// nil and every call is a no-op. Journal failures are logged and swallowed
// so bookkeeping can never break the conversation flow.
package journal

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
)

// Outcome labels for Entry.Outcome.
const (
	OutcomeUploaded    = "uploaded"
	OutcomeFailed      = "failed"
	OutcomeRejected    = "rejected"
	OutcomeUnsupported = "unsupported"
)

// Entry is one recorded relay attempt.
type Entry struct {
	UserID   int64  `db:"user_id"`
	FileName string `db:"file_name"`
	Kind     string `db:"kind"`
	Backend  string `db:"backend"`
	Outcome  string `db:"outcome"`
}

// Store writes entries into the upload_journal table.
type Store struct {
	db *sqlx.DB
}

// New returns a store over db, or nil when db is nil so callers can hold
// a single *Store regardless of whether the journal is enabled.
func New(db *sqlx.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

const insertEntry = `
INSERT INTO upload_journal (user_id, file_name, kind, backend, outcome)
VALUES (:user_id, :file_name, :kind, :backend, :outcome)`

// Record appends one entry. Safe on a nil store; insert errors are logged
// and dropped.
func (s *Store) Record(ctx context.Context, e Entry) {
	if s == nil || s.db == nil {
		return
	}

	start := time.Now()
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.NamedExecContext(writeCtx, insertEntry, e); err != nil {
		logger.Warn(ctx, "db", "journal.insert.fail",
			slog.Int64("user_id", e.UserID),
			slog.String("outcome", e.Outcome),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return
	}

	logger.Debug(ctx, "db", "journal.insert.ok",
		slog.Int64("user_id", e.UserID),
		slog.String("outcome", e.Outcome),
		slog.Duration("duration", logger.Took(start)),
	)
}
