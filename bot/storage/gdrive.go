package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	"log/slog"
)

// gdriveBackend uploads into Google Drive, optionally under a fixed folder.
type gdriveBackend struct {
	svc      *drive.Service
	folderID string
}

func newGDriveBackend(ctx context.Context, cfg coreconfig.GDriveConfig) (Backend, error) {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return nil, fmt.Errorf("gdrive: credentials_file is required")
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("gdrive: service init: %w", err)
	}

	return &gdriveBackend{svc: svc, folderID: cfg.FolderID}, nil
}

// Label implements Backend.
func (b *gdriveBackend) Label() string { return KindGDrive.Label() }

// Upload implements Backend. Remote failures surface as false only.
func (b *gdriveBackend) Upload(ctx context.Context, localPath string) bool {
	name := filepath.Base(localPath)
	start := time.Now()

	f, err := os.Open(localPath)
	if err != nil {
		logger.Error(ctx, "svc.storage", "upload.fail",
			slog.String("backend", b.Label()),
			slog.String("file", name),
			slog.String("err", err.Error()),
		)
		return false
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if b.folderID != "" {
		meta.Parents = []string{b.folderID}
	}

	created, err := b.svc.Files.Create(meta).Media(f).Context(ctx).Do()
	if err != nil {
		logger.Error(ctx, "svc.storage", "upload.fail",
			slog.String("backend", b.Label()),
			slog.String("file", name),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return false
	}

	logger.Info(ctx, "svc.storage", "upload.ok",
		slog.String("backend", b.Label()),
		slog.String("file", name),
		slog.String("remote_id", created.Id),
		slog.Duration("duration", logger.Took(start)),
	)
	return true
}
