package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	"gorm.io/gorm"
)

// RunStore persists pipeline runs and their step checkpoints. Writes are
// keyed by run ID; concurrent runs never touch each other's rows.
type RunStore interface {
	// Create records a new run.
	Create(ctx context.Context, run *models.PipelineRun) error

	// Get returns a run by ID, ErrNotFound when unknown.
	Get(ctx context.Context, runID string) (*models.PipelineRun, error)

	// SaveCheckpoint durably records a step's output against the run and
	// advances CurrentStep. A step with a checkpoint is never re-executed.
	SaveCheckpoint(ctx context.Context, runID, step string, output json.RawMessage) error

	// SetStatus transitions the run's status. lastError is stored verbatim
	// for errored runs and cleared otherwise.
	SetStatus(ctx context.Context, runID string, status models.RunStatus, lastError string) error
}

// MySQLRunStore 是基于 GORM 的 RunStore 实现。
type MySQLRunStore struct {
	DB *gorm.DB
}

// NewMySQLRunStore 创建一个新的 MySQLRunStore。
func NewMySQLRunStore(db *gorm.DB) *MySQLRunStore {
	return &MySQLRunStore{DB: db}
}

// Create 记录一次新的流水线运行。
func (s *MySQLRunStore) Create(ctx context.Context, run *models.PipelineRun) error {
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create pipeline run %s: %w", run.RunID, err)
	}
	return nil
}

// Get 按 ID 取回运行记录。
func (s *MySQLRunStore) Get(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := s.DB.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: pipeline run %s", apperr.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load pipeline run %s: %w", runID, err)
	}
	return &run, nil
}

// SaveCheckpoint 将步骤输出写入运行记录并推进 CurrentStep。
// 读改写在事务中进行，同一运行的检查点不会互相覆盖。
func (s *MySQLRunStore) SaveCheckpoint(ctx context.Context, runID, step string, output json.RawMessage) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run models.PipelineRun
		if err := tx.Where("run_id = ?", runID).First(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: pipeline run %s", apperr.ErrNotFound, runID)
			}
			return err
		}

		checkpoints, err := run.Checkpoints()
		if err != nil {
			return fmt.Errorf("failed to decode checkpoints for run %s: %w", runID, err)
		}
		checkpoints[step] = output

		encoded, err := json.Marshal(checkpoints)
		if err != nil {
			return fmt.Errorf("failed to encode checkpoints for run %s: %w", runID, err)
		}

		return tx.Model(&models.PipelineRun{}).
			Where("run_id = ?", runID).
			Updates(map[string]interface{}{
				"step_outputs": encoded,
				"current_step": step,
			}).Error
	})
}

// SetStatus 更新运行状态。
func (s *MySQLRunStore) SetStatus(ctx context.Context, runID string, status models.RunStatus, lastError string) error {
	err := s.DB.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update status for run %s: %w", runID, err)
	}
	return nil
}

var _ RunStore = (*MySQLRunStore)(nil)
