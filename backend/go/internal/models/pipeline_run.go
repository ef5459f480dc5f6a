package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RunStatus 是流水线运行的状态机取值。
// 状态转移单向: queued -> running -> {complete | errored}；
// 仅允许 errored -> running (手动或自动恢复同一运行)。
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunErrored  RunStatus = "errored"
	RunComplete RunStatus = "complete"
)

// 流水线步骤名，按固定顺序执行。
const (
	StepTranscribe = "transcribe"
	StepStructure  = "structure"
	StepEmbed      = "embed"
	StepPersist    = "persist"
	StepIndex      = "index"
	StepCleanup    = "cleanup"
)

// PipelineRun 是一次上传处理的持久化运行记录。
// StepOutputs 按步骤名保存每一步的结果 (检查点)，重试/恢复时
// 已有检查点的步骤直接跳过，不会再次调用外部服务。
type PipelineRun struct {
	RunID       string         `gorm:"primaryKey;size:64" json:"runId"`
	OwnerID     string         `gorm:"index;size:64;not null" json:"ownerId"`
	AudioRef    string         `gorm:"size:255;not null" json:"audioRef"`
	CurrentStep string         `gorm:"size:32" json:"currentStep"`
	StepOutputs datatypes.JSON `json:"-"`
	Status      RunStatus      `gorm:"size:16;index" json:"status"`
	LastError   string         `gorm:"type:text" json:"lastError,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// Checkpoints 将 StepOutputs 解码为步骤名到原始 JSON 的映射。
func (r *PipelineRun) Checkpoints() (map[string]json.RawMessage, error) {
	outputs := make(map[string]json.RawMessage)
	if len(r.StepOutputs) == 0 {
		return outputs, nil
	}
	if err := json.Unmarshal(r.StepOutputs, &outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// RunResult 是运行完成后暴露给调用方的最终输出。
type RunResult struct {
	MemoID      string   `json:"memoId"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Category    Category `json:"category"`
	ActionItems []string `json:"actionItems"`
}
