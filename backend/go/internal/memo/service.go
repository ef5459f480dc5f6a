package memo

import (
	"context"

	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/objectstore"
	"VoxMind/backend/go/internal/vectorindex"
	"VoxMind/backend/go/pkg/logger"
)

// Service wraps the memo store with the cross-store bookkeeping that
// reads and deletes need: a memo owns a vector index entry and possibly
// an audio object, and deleting the record must clean those up too.
type Service struct {
	log   *logger.Logger
	store Store
	index vectorindex.Index
	audio objectstore.ObjectStore
}

// NewService creates a new memo Service.
func NewService(store Store, index vectorindex.Index, audio objectstore.ObjectStore, log *logger.Logger) *Service {
	return &Service{
		log:   log,
		store: store,
		index: index,
		audio: audio,
	}
}

// Get returns a single memo scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.MemoRecord, error) {
	return s.store.GetByID(ctx, ownerID, id)
}

// GetBatch returns the owner's memos for the given IDs, preserving ID order.
// IDs that do not resolve to a memo of this owner are silently dropped.
func (s *Service) GetBatch(ctx context.Context, ownerID string, ids []string) ([]*models.MemoRecord, error) {
	return s.store.GetByIDs(ctx, ownerID, ids)
}

// List returns the owner's memos, newest first, optionally filtered by category.
func (s *Service) List(ctx context.Context, ownerID string, category models.Category) ([]*models.MemoRecord, error) {
	return s.store.ListByOwner(ctx, ownerID, category)
}

// Delete removes a memo and its derived data. The database record is the
// source of truth: its deletion must succeed. The index entry and the audio
// object are cleaned up best-effort afterwards, a failure there leaves an
// orphan but never resurrects the memo.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	record, err := s.store.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteByID(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.index.DeleteByIDs(ctx, []string{id}); err != nil {
		s.log.WithError(err).Warn("memo deleted but index entry removal failed")
	}

	if record.AudioRef != "" {
		if err := s.audio.Delete(ctx, record.AudioRef); err != nil {
			s.log.WithError(err).Warn("memo deleted but audio object removal failed")
		}
	}

	return nil
}
