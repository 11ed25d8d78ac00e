// Package classify normalizes inbound Telegram messages into a tagged
// attachment classification consumed by the conversation engine.
package classify

import (
	tele "gopkg.in/telebot.v4"
)

// Kind is the tagged attachment variant. Handlers switch on it
// exhaustively instead of probing message fields in ad-hoc order.
type Kind int

const (
	// Unsupported marks a message carrying none of the accepted payloads.
	// With correctly wired media routes this branch is defensive only.
	Unsupported Kind = iota
	// Document is a generic file attachment. Images sent as file
	// attachments arrive here and keep their original quality.
	Document
	// Video is a video payload; Telegram delivers videos here even when
	// they were sent as file attachments.
	Video
	// Photo is an inline (non-attachment) image. Telegram compresses
	// these, so they are rejected rather than relayed in degraded form.
	Photo
)

// String returns the lowercase variant name for logs.
func (k Kind) String() string {
	switch k {
	case Document:
		return "document"
	case Video:
		return "video"
	case Photo:
		return "photo"
	default:
		return "unsupported"
	}
}

// videoDisplayName substitutes for the original filename, which Telegram
// does not carry on video payloads.
const videoDisplayName = "Video file."

// Result is the normalized outcome of classifying one inbound message.
// It is produced once per attachment event and consumed once.
type Result struct {
	Kind        Kind
	DisplayName string
	// File is the download handle; nil for Photo and Unsupported where
	// no download is ever attempted.
	File *tele.File
}

// Classify inspects one inbound message and produces exactly one Result.
// Precedence mirrors Telegram attachment semantics: an explicit document
// wins over a video, which wins over an inline photo.
func Classify(m *tele.Message) Result {
	if m == nil {
		return Result{Kind: Unsupported}
	}
	switch {
	case m.Document != nil:
		return Result{
			Kind:        Document,
			DisplayName: m.Document.FileName,
			File:        m.Document.MediaFile(),
		}
	case m.Video != nil:
		return Result{
			Kind:        Video,
			DisplayName: videoDisplayName,
			File:        m.Video.MediaFile(),
		}
	case m.Photo != nil:
		return Result{Kind: Photo}
	default:
		return Result{Kind: Unsupported}
	}
}
