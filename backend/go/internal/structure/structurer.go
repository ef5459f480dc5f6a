package structure

import (
	"context"

	"VoxMind/backend/go/internal/models"
)

// Structurer 从原始转写文本中提取结构化的备忘录信息。
type Structurer interface {
	// Structure 分析 rawText 并返回结构化结果。
	// 返回的结构体保证通过 Validate 校验。
	Structure(ctx context.Context, rawText string) (*models.MemoStructure, error)
}
