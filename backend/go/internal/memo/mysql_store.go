package memo

import (
	"context"
	"errors"
	"fmt"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	"gorm.io/gorm"
)

// MySQLStore 是基于 GORM 的 Store 实现。
type MySQLStore struct {
	DB *gorm.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{DB: db}
}

// Insert 精确创建一条备忘录。
func (s *MySQLStore) Insert(ctx context.Context, record *models.MemoRecord) error {
	if err := s.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to insert memo %s: %w", record.ID, err)
	}
	return nil
}

// GetByID 按 owner 取回单条备忘录。
func (s *MySQLStore) GetByID(ctx context.Context, ownerID, id string) (*models.MemoRecord, error) {
	var record models.MemoRecord
	err := s.DB.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: memo %s", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load memo %s: %w", id, err)
	}
	return &record, nil
}

// GetByIDs 按 owner 批量取回备忘录，结果顺序跟随输入 ID。
func (s *MySQLStore) GetByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.MemoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []*models.MemoRecord
	err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load memos: %w", err)
	}

	byID := make(map[string]*models.MemoRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	ordered := make([]*models.MemoRecord, 0, len(records))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// ListByOwner 列出 owner 的备忘录，按创建时间倒序。
func (s *MySQLStore) ListByOwner(ctx context.Context, ownerID string, category models.Category) ([]*models.MemoRecord, error) {
	query := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var records []*models.MemoRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}
	return records, nil
}

// DeleteByID 按 owner 删除单条备忘录。
func (s *MySQLStore) DeleteByID(ctx context.Context, ownerID, id string) error {
	result := s.DB.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.MemoRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete memo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: memo %s", apperr.ErrNotFound, id)
	}
	return nil
}

var _ Store = (*MySQLStore)(nil)
