package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/option"
)

// GCSStore keeps each key as its own object in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to Cloud Storage. When credentialsFile is empty the
// application default credentials are used.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string, logger *slog.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs storage requires a bucket")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// objectName maps a key to an object name. Keys are escaped so a colon or
// slash in a key cannot escape the prefix.
func (s *GCSStore) objectName(key string) string {
	return path.Join(s.prefix, url.PathEscape(key)+".json")
}

func (s *GCSStore) retryOptions(ctx context.Context, op, key string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2 * time.Minute),
		retry.MaxJitter(10 * time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying storage operation after error", "op", op, "attempt", n, "key", key, "error", err)
		}),
	}
}

// Get reads the object for key.
func (s *GCSStore) Get(ctx context.Context, key string) (string, bool, error) {
	name := s.objectName(key)

	var (
		data     []byte
		notFound bool
	)
	err := retry.Do(
		func() error {
			r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					notFound = true
					return retry.Unrecoverable(err)
				}
				return fmt.Errorf("open storage reader: %w", err)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			data, err = io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read from storage: %w", err)
			}
			return nil
		},
		s.retryOptions(ctx, "get", key)...,
	)
	if notFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting key %s after retries: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes the object for key.
func (s *GCSStore) Set(ctx context.Context, key, value string) error {
	name := s.objectName(key)

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, err := io.WriteString(w, value); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		s.retryOptions(ctx, "set", key)...,
	)
	if err != nil {
		return fmt.Errorf("setting key %s after retries: %w", key, err)
	}
	return nil
}

// Delete removes the object for key. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	name := s.objectName(key)

	var notFound bool
	err := retry.Do(
		func() error {
			err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
			if errors.Is(err, storage.ErrObjectNotExist) {
				notFound = true
				return nil
			}
			return err
		},
		s.retryOptions(ctx, "delete", key)...,
	)
	if err != nil && !notFound {
		return fmt.Errorf("deleting key %s after retries: %w", key, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
