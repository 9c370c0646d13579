package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

type BucketConfig struct {
	Name        string
	Credentials string
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost string
	Prefix       string
}

// Bucket writes exported objects to one GCS bucket.
type Bucket struct {
	log    *logger.Logger
	client *storage.Client
	name   string
	prefix string
}

// NewBucket returns nil, nil when no bucket is configured.
func NewBucket(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*Bucket, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, nil
	}
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptions(cfg.Credentials), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	b := &Bucket{
		log:    log.With("service", "Bucket"),
		client: client,
		name:   name,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}
	b.log.Info("Object storage initialized", "bucket", name, "emulator", cfg.EmulatorHost != "")
	return b, nil
}

func (b *Bucket) key(k string) string {
	k = strings.TrimLeft(k, "/")
	if b.prefix == "" {
		return k
	}
	return b.prefix + "/" + k
}

// Upload writes r to key and returns the gs:// URI.
func (b *Bucket) Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	obj := b.key(key)
	w := b.client.Bucket(b.name).Object(obj).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return "gs://" + b.name + "/" + obj, nil
}

// UploadJSON marshals v and uploads it.
func (b *Bucket) UploadJSON(ctx context.Context, key string, v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return b.Upload(ctx, key, "application/json", bytes.NewReader(raw))
}

func (b *Bucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
