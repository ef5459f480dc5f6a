package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"

	"github.com/minio/minio-go/v7"
)

// MinIOStore is an ObjectStore backed by a MinIO (S3-compatible) bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore creates a new MinIOStore for the given bucket.
func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

// Put uploads an audio blob under the given key.
func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return nil
}

// Get returns a reader for the object. The caller must close it.
func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return obj, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// Stat resolves an audio reference into its artifact metadata.
// An unknown key maps to apperr.ErrInvalidInput so the orchestrator can reject
// unresolvable references at Start.
func (s *MinIOStore) Stat(ctx context.Context, key string) (*models.AudioArtifact, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return nil, fmt.Errorf("%w: audio reference %q not found", apperr.ErrInvalidInput, key)
		}
		return nil, fmt.Errorf("failed to stat object %q: %w", key, err)
	}
	id := key
	if i := strings.LastIndex(key, "."); i > 0 {
		id = key[:i]
	}
	return &models.AudioArtifact{
		ID:         id,
		StorageKey: key,
		MimeType:   info.ContentType,
		SizeBytes:  info.Size,
		UploadedAt: info.LastModified,
	}, nil
}

// SignedReadURL issues a presigned GET URL so the transcription service can
// download the audio directly from the bucket.
func (s *MinIOStore) SignedReadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", key, err)
	}
	return u.String(), nil
}

var _ ObjectStore = (*MinIOStore)(nil)
