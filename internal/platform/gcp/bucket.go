package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// ArchiveStore keeps generated documents for later retrieval.
type ArchiveStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type bucketStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewArchiveStore opens a GCS client for bucket. STORAGE_EMULATOR_HOST switches to the emulator.
func NewArchiveStore(ctx context.Context, log *logger.Logger, bucket string) (ArchiveStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing EXPORT_ARCHIVE_BUCKET")
	}
	client, err := storage.NewClient(ctx, clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	log.Info("Export archive initialized", "bucket", bucket)
	return &bucketStore{
		log:    log.With("service", "ArchiveStore"),
		client: client,
		bucket: bucket,
	}, nil
}

// clientOptions skips auth against the emulator. Otherwise credentials come from
// inline JSON, a key file path, or the ambient default chain.
func clientOptions() []option.ClientOption {
	if envutil.String("STORAGE_EMULATOR_HOST", "") != "" {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if creds == "" {
		creds = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	switch {
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	case creds != "":
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

func (s *bucketStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer %q: %w", key, err)
	}
	return nil
}

func (s *bucketStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs object %q: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *bucketStore) Close() error {
	return s.client.Close()
}
