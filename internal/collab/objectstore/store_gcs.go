package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"memberhub/internal/platform/config"
)

// GCSStore stores export bundles in a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	accessID   string
	privateKey []byte
}

func NewGCSStore(ctx context.Context, cfg config.GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	var key []byte
	if cfg.SignedURLPrivateKeyFile != "" {
		key, err = os.ReadFile(cfg.SignedURLPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signed URL key: %w", err)
		}
	}

	return &GCSStore{
		client:     client,
		bucket:     cfg.Bucket,
		accessID:   cfg.SignedURLAccessID,
		privateKey: key,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:         http.MethodGet,
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
	})
	if err != nil {
		return "", fmt.Errorf("sign URL for %s: %w", key, err)
	}
	return url, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
