package objectstore

import (
	"context"
	"io"
	"time"

	"VoxMind/backend/go/internal/models"
)

// ObjectStore is the interface for storing and retrieving raw audio blobs by key.
// SignedReadURL issues a time-limited URL so the transcription service can fetch
// the audio without credentials.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (*models.AudioArtifact, error)
	SignedReadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
