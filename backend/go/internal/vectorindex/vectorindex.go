package vectorindex

import (
	"context"

	"VoxMind/backend/go/internal/models"
)

// Match is a single nearest-neighbor hit from the index. Score is the
// raw L2 distance reported by the search, smaller is closer.
type Match struct {
	MemoID  string
	OwnerID string
	Score   float32
}

// Index is the vector index over memo embeddings. Every entry belongs to
// exactly one owner; queries never cross owner boundaries.
type Index interface {
	// Upsert writes the embedding for a memo, replacing any previous entry
	// with the same memo ID.
	Upsert(ctx context.Context, vec models.EmbeddingVector) error

	// Query returns up to topK nearest neighbors among the owner's entries,
	// ordered by ascending distance.
	Query(ctx context.Context, ownerID string, vector []float32, topK int) ([]Match, error)

	// DeleteByIDs removes entries by memo ID. Missing IDs are not an error.
	DeleteByIDs(ctx context.Context, memoIDs []string) error
}
