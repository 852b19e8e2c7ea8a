package psql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// TaskRepo persists the durable task records behind the broker.
type TaskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) CreateTask(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *TaskRepo) GetTask(ctx context.Context, taskID string) (*entity.Task, error) {
	task := &entity.Task{}
	err := r.db.WithContext(ctx).First(task, "task_id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// UpdateTaskStatus moves a task through its lifecycle without touching the
// outcome columns.
func (r *TaskRepo) UpdateTaskStatus(ctx context.Context, taskID string, status entity.TaskStatus) error {
	return r.db.WithContext(ctx).Model(&entity.Task{}).
		Where("task_id = ?", taskID).
		Update("status", status).Error
}

// MarkSucceeded records the terminal outcome of a completed task.
func (r *TaskRepo) MarkSucceeded(ctx context.Context, taskID, resultJSON, resultKey string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&entity.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       entity.StatusSucceeded,
			"result_json":  resultJSON,
			"result_key":   resultKey,
			"error":        "",
			"completed_at": &now,
		}).Error
}

// MarkFailed records a terminal failure after retries are exhausted.
func (r *TaskRepo) MarkFailed(ctx context.Context, taskID, reason string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&entity.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       entity.StatusFailed,
			"error":        reason,
			"completed_at": &now,
		}).Error
}
