package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bazaar-market/apiserver/config"
)

// ErrObjectExists is returned by Upload when overwrite is disabled and the
// key is already taken.
var ErrObjectExists = errors.New("object already exists")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend       ObjectStorage
	publicBaseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
// A non-empty publicBaseURL replaces the backend's own URL scheme.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{
		backend:       backend,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores an object and returns its public URL. With overwrite
// disabled an existing key yields ErrObjectExists.
func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string, overwrite bool) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	if !overwrite {
		exists, err := s.backend.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check object %q: %w", key, err)
		}
		if exists {
			return "", ErrObjectExists
		}
	}
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the URL clients use to fetch the object.
func (s *Storage) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
	}
	return s.backend.PublicURL(key)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Open constructs the configured backend and wraps it.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.Backend {
	case "", "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}
