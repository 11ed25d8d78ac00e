package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"log/slog"

	"github.com/m3rciful/relaybot/bot/classify"
	"github.com/m3rciful/relaybot/bot/journal"
	"github.com/m3rciful/relaybot/bot/session"
	"github.com/m3rciful/relaybot/bot/storage"
	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
)

const (
	msgChooseBackend = "Choose a storage service.\nSend /cancel to stop."
	msgReadyFmt      = "I will upload files that you send me to %s. I'm ready to receive files. " +
		"\nMake sure to send as -file attachments- so that the images/videos are not compressed."
	msgReceivedFmt   = "File received.\n%s"
	msgUploaded      = "File uploaded."
	msgPhotoRejected = "⚠️ Photo not stored. Please only use the -file attachment- option when sending images, " +
		"otherwise they will be compressed."
	msgUnsupported      = "Unsupported file type."
	msgFinished         = "Finished. Reply /start to start again."
	msgApology          = "I encountered an error."
	msgNotAuthorizedFmt = "%s is not authorized."
)

func userDisplay(u *tele.User) string {
	if u == nil {
		return "unknown user"
	}
	return fmt.Sprintf("%s (id: %d)", u.FirstName, u.ID)
}

// rejectUnauthorized runs when the allow-list gate drops an update. Only
// /start earns an explicit refusal; anything else from an unapproved user
// is dropped without a reply.
func (a *App) rejectUnauthorized(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "access")
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	logger.Info(ctx, "svc.relay", "access.denied",
		slog.String("username", logger.SanitizeLimit(sender.Username, 64)),
	)
	if strings.HasPrefix(strings.TrimSpace(c.Text()), "/start") {
		return tghelpers.SendText(c, fmt.Sprintf(msgNotAuthorizedFmt, userDisplay(sender)))
	}
	return nil
}

// handleStart opens a fresh session and offers the destination menu. A
// repeated /start replaces any existing session, clearing its backend
// binding.
func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var out error
	a.sessions.With(sender.ID, func(prev *session.Session) {
		a.sessions.Begin(sender.ID)
		logger.Info(ctx, "svc.relay", "conversation.start",
			slog.Bool("replaced", prev != nil),
		)
		out = tghelpers.SendWithMarkup(c, msgChooseBackend, keyboard.ReplyButtons(storage.Menu()))
	})
	return out
}

// handleBackendChoice consumes the menu answer while a session awaits it.
// Text outside that state belongs to no conversation and is ignored.
func (a *App) handleBackendChoice(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "choose_backend")
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var out error
	a.sessions.With(sender.ID, func(s *session.Session) {
		if s == nil || s.State != session.StateAwaitingBackend {
			return
		}

		label := strings.TrimSpace(c.Text())
		kind, ok := storage.ParseKind(label)
		if !ok {
			logger.Debug(ctx, "svc.relay", "choice.unrecognized",
				slog.String("payload", logger.SanitizeLimit(label, 64)),
			)
			return
		}

		backend, err := a.factory.Build(ctx, kind)
		if err != nil {
			logger.Error(ctx, "svc.relay", "backend.build.fail",
				slog.String("backend", kind.Label()),
				slog.String("err", err.Error()),
			)
			out = tghelpers.SendText(c, msgApology)
			return
		}

		if !a.sessions.Bind(sender.ID, backend) {
			logger.Warn(ctx, "svc.relay", "backend.bind.fail",
				slog.String("backend", backend.Label()),
			)
			return
		}

		logger.Info(ctx, "svc.relay", "backend.selected",
			slog.String("backend", backend.Label()),
		)
		out = tghelpers.SendWithMarkup(c,
			fmt.Sprintf(msgReadyFmt, backend.Label()),
			keyboard.RemoveKeyboard(),
		)
	})
	return out
}

// handleAttachment relays one media message while a session is receiving
// files. Attachments without a live session are ignored; the transport
// keyboard already prompts the user to /start.
func (a *App) handleAttachment(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "relay")
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var out error
	a.sessions.With(sender.ID, func(s *session.Session) {
		if s == nil || s.State != session.StateReceivingFiles || s.Backend == nil {
			logger.Debug(ctx, "svc.relay", "attachment.no_session")
			return
		}
		out = a.relayAttachment(ctx, c, sender.ID, s)
	})
	return out
}

// relayAttachment classifies, downloads, and uploads one attachment. The
// caller holds the user's exclusion lock for the whole exchange.
func (a *App) relayAttachment(ctx context.Context, c tele.Context, userID int64, s *session.Session) error {
	res := classify.Classify(c.Message())

	switch res.Kind {
	case classify.Photo:
		logger.Info(ctx, "svc.relay", "attachment.rejected",
			slog.String("kind", res.Kind.String()),
		)
		a.journal.Record(ctx, journal.Entry{
			UserID:  userID,
			Kind:    res.Kind.String(),
			Backend: s.Backend.Label(),
			Outcome: journal.OutcomeRejected,
		})
		return tghelpers.SendText(c, msgPhotoRejected)

	case classify.Unsupported:
		// Reachable only if the media routes drift from the classifier.
		logger.Warn(ctx, "svc.relay", "attachment.unsupported")
		a.journal.Record(ctx, journal.Entry{
			UserID:  userID,
			Kind:    res.Kind.String(),
			Backend: s.Backend.Label(),
			Outcome: journal.OutcomeUnsupported,
		})
		return tghelpers.SendText(c, msgUnsupported)
	}

	name := safeFileName(res.DisplayName)

	dir, err := os.MkdirTemp("", "relaybot-")
	if err != nil {
		logger.Error(ctx, "svc.relay", "download.tempdir.fail",
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgApology)
	}
	defer os.RemoveAll(dir)
	localPath := filepath.Join(dir, name)

	start := time.Now()
	if err := c.Bot().Download(res.File, localPath); err != nil {
		logger.Error(ctx, "svc.relay", "download.fail",
			slog.String("kind", res.Kind.String()),
			slog.String("file", name),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgApology)
	}
	logger.Info(ctx, "svc.relay", "download.ok",
		slog.String("kind", res.Kind.String()),
		slog.String("file", name),
		slog.Duration("duration", logger.Took(start)),
	)

	// The received/uploaded pair must reach the user in that order, so
	// both bypass the multi-worker async dispatcher.
	if err := c.Send(
		fmt.Sprintf(msgReceivedFmt, res.DisplayName),
		&tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()},
	); err != nil {
		return err
	}

	uploaded := s.Backend.Upload(ctx, localPath)
	outcome := journal.OutcomeUploaded
	if !uploaded {
		outcome = journal.OutcomeFailed
	}
	a.journal.Record(ctx, journal.Entry{
		UserID:   userID,
		FileName: name,
		Kind:     res.Kind.String(),
		Backend:  s.Backend.Label(),
		Outcome:  outcome,
	})

	if !uploaded {
		// No success reply: its absence is the failure signal, and the
		// user may retry by resending the file.
		return nil
	}
	return c.Send(msgUploaded)
}

// handleCancel discards the session. It does not interrupt an upload in
// flight; that attempt completes against the backend it started with.
func (a *App) handleCancel(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "cancel")
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var had bool
	a.sessions.With(sender.ID, func(*session.Session) {
		had = a.sessions.End(sender.ID)
	})
	logger.Info(ctx, "svc.relay", "conversation.cancel",
		slog.Bool("had_session", had),
	)
	return tghelpers.SendWithMarkup(c, msgFinished, keyboard.RemoveKeyboard())
}

// safeFileName reduces a user-supplied display name to a bare file name
// usable inside the scratch directory and as the remote object name.
func safeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "attachment"
	}
	return name
}
