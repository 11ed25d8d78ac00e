// Package storage defines the destination abstraction the relay uploads
// into, plus one implementation per supported service.
package storage

import (
	"context"
	"errors"
	"fmt"

	coreconfig "github.com/m3rciful/relaybot/core/config"
)

// Backend is a single storage destination. Upload reports success as a
// boolean: ordinary remote failures (network, auth at call time) are
// logged and returned as false, never propagated as errors. Only
// configuration-level faults fail fast, at Build time.
type Backend interface {
	// Label returns the user-facing menu label for this destination.
	Label() string
	// Upload stores the file at localPath remotely and reports whether
	// the remote write was confirmed.
	Upload(ctx context.Context, localPath string) bool
}

// Kind enumerates the closed set of destination variants. The selection
// menu is generated from the same set, so an unknown kind is unreachable
// in normal flow and only guards against menu/parsing drift.
type Kind int

const (
	// KindS3 targets an S3-compatible object store.
	KindS3 Kind = iota
	// KindGDrive targets Google Drive.
	KindGDrive
)

// Label returns the user-facing menu label of the kind.
func (k Kind) Label() string {
	switch k {
	case KindS3:
		return "S3"
	case KindGDrive:
		return "GDrive"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Kinds lists every destination variant in menu order.
func Kinds() []Kind {
	return []Kind{KindS3, KindGDrive}
}

// Menu returns the labels the selection keyboard is generated from.
func Menu() []string {
	kinds := Kinds()
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = k.Label()
	}
	return labels
}

// ParseKind resolves a user-sent label to its kind. Matching is exact,
// mirroring the labels on the selection keyboard.
func ParseKind(label string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Label() == label {
			return k, true
		}
	}
	return 0, false
}

// ErrUnknownKind reports a kind outside the configured variant set.
var ErrUnknownKind = errors.New("storage: unknown backend kind")

// Factory constructs backends from the loaded configuration. Each session
// gets its own backend instance; instances are never shared across users.
type Factory struct {
	cfg coreconfig.StorageConfig
}

// NewFactory returns a Factory bound to the given destination settings.
func NewFactory(cfg coreconfig.StorageConfig) *Factory {
	return &Factory{cfg: cfg}
}

// Build constructs the backend for the given kind. Missing credentials are
// a configuration fault and fail fast here rather than per upload.
func (f *Factory) Build(ctx context.Context, kind Kind) (Backend, error) {
	switch kind {
	case KindS3:
		return newS3Backend(f.cfg.S3)
	case KindGDrive:
		return newGDriveBackend(ctx, f.cfg.GDrive)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}
