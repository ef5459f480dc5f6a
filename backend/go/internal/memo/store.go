package memo

import (
	"context"

	"VoxMind/backend/go/internal/models"
)

// Store 是备忘录记录的持久化接口。所有读取都带 owner 约束，
// 不同 owner 的数据互相不可见。
type Store interface {
	// Insert 精确创建一条备忘录。主键冲突时返回错误，不做覆盖。
	Insert(ctx context.Context, record *models.MemoRecord) error

	// GetByID 按 owner 取回单条备忘录，不存在时返回 ErrNotFound。
	GetByID(ctx context.Context, ownerID, id string) (*models.MemoRecord, error)

	// GetByIDs 按 owner 批量取回备忘录。缺失的 ID 被静默跳过，
	// 返回结果与输入 ID 的顺序一致。
	GetByIDs(ctx context.Context, ownerID string, ids []string) ([]*models.MemoRecord, error)

	// ListByOwner 列出 owner 的备忘录，按创建时间倒序。
	// category 非空时只返回该分类。
	ListByOwner(ctx context.Context, ownerID string, category models.Category) ([]*models.MemoRecord, error)

	// DeleteByID 按 owner 删除单条备忘录，不存在时返回 ErrNotFound。
	DeleteByID(ctx context.Context, ownerID, id string) error
}
