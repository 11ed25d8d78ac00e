package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	"log/slog"
)

// s3Backend uploads into an S3-compatible bucket via minio-go.
type s3Backend struct {
	client *minio.Client
	bucket string
}

func newS3Backend(cfg coreconfig.S3Config) (Backend, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("s3: access_key and secret_key are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: client init: %w", err)
	}

	return &s3Backend{client: client, bucket: cfg.Bucket}, nil
}

// Label implements Backend.
func (b *s3Backend) Label() string { return KindS3.Label() }

// Upload implements Backend. Remote failures surface as false only.
func (b *s3Backend) Upload(ctx context.Context, localPath string) bool {
	object := filepath.Base(localPath)
	start := time.Now()

	info, err := b.client.FPutObject(ctx, b.bucket, object, localPath, minio.PutObjectOptions{})
	if err != nil {
		logger.Error(ctx, "svc.storage", "upload.fail",
			slog.String("backend", b.Label()),
			slog.String("file", object),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return false
	}

	logger.Info(ctx, "svc.storage", "upload.ok",
		slog.String("backend", b.Label()),
		slog.String("file", object),
		slog.Int64("size", info.Size),
		slog.Duration("duration", logger.Took(start)),
	)
	return true
}
