// Package storage holds rendered artifacts: mixed output and generated
// background tracks.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/config"
)

// ArtifactStore abstracts artifact storage backends.
type ArtifactStore interface {
	// Save stores artifact bytes. key format: {job_id}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns a presigned URL for the artifact. "" for local backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the artifact.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether the artifact is present.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates an ArtifactStore based on config. S3 configuration is
// validated up front so a bad bucket fails startup, not the first job.
func New(cfg *config.Config, log zerolog.Logger) (ArtifactStore, error) {
	if !cfg.S3Enabled() {
		return NewLocalStore(cfg.ArtifactDir), nil
	}

	s3store, err := NewS3Store(cfg.S3, log)
	if err != nil {
		return nil, fmt.Errorf("s3 init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("s3 bucket %q unreachable: %w", cfg.S3.Bucket, err)
	}
	return s3store, nil
}
