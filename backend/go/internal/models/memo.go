package models

import (
	"fmt"
	"time"

	"VoxMind/backend/go/internal/apperr"

	"gorm.io/datatypes"
)

// Category 是备忘录的闭集分类。与前端展示保持一致，全部使用韩文标签。
type Category string

const (
	CategoryWork  Category = "업무"   // 工作
	CategoryDev   Category = "개발"   // 开发
	CategoryDiary Category = "일기"   // 日记
	CategoryIdea  Category = "아이디어" // 想法
	CategoryStudy Category = "학습"   // 学习
	CategoryEtc   Category = "기타"   // 其他
)

// Categories 列出全部合法分类，顺序与前端的筛选器一致。
var Categories = []Category{
	CategoryWork,
	CategoryDev,
	CategoryDiary,
	CategoryIdea,
	CategoryStudy,
	CategoryEtc,
}

// ParseCategory 是分类的唯一校验入口，结构化步骤与持久化层共用。
// 未知分类一律拒绝，不做任何静默归一化。
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", apperr.ErrMissingRequiredField, s)
}

// MemoStructure 是结构化步骤的输出: 从原始转写文本中提取出的核心信息。
type MemoStructure struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Category    Category `json:"category"`
	ActionItems []string `json:"action_items"`
}

// Validate 校验必填字段非空且分类合法。
func (s *MemoStructure) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("%w: title", apperr.ErrMissingRequiredField)
	}
	if s.Summary == "" {
		return fmt.Errorf("%w: summary", apperr.ErrMissingRequiredField)
	}
	if _, err := ParseCategory(string(s.Category)); err != nil {
		return err
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	return nil
}

// AudioArtifact 描述一次上传产生的原始音频对象。创建后不可变，
// 流水线仅引用而不拥有它；处理完成后按保留策略决定去留。
type AudioArtifact struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// MemoRecord 是一条处理完成的语音备忘录，按 owner 隔离。
// 由流水线的 persist 步骤精确创建一次，之后只通过显式的更新/删除操作变更。
type MemoRecord struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	OwnerID     string         `gorm:"index;size:64;not null" json:"ownerId"`
	RawText     string         `gorm:"type:text" json:"rawText"`
	Title       string         `gorm:"size:255" json:"title"`
	Summary     string         `gorm:"type:text" json:"summary"`
	Category    Category       `gorm:"size:32" json:"category"`
	ActionItems datatypes.JSON `json:"actionItems"`
	AudioRef    string         `gorm:"size:255" json:"audioRef,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (MemoRecord) TableName() string {
	return "memos"
}

// EmbeddingVector 是备忘录在向量索引中的条目。
// 维度在整个集合内固定，必须与 Embedding 配置一致。
type EmbeddingVector struct {
	MemoID  string    `json:"memoId"`
	OwnerID string    `json:"ownerId"`
	Values  []float32 `json:"values"`
}
