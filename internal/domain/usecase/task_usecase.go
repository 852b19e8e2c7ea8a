package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/retry"
)

type TaskRepo interface {
	CreateTask(ctx context.Context, task *entity.Task) error
	GetTask(ctx context.Context, taskID string) (*entity.Task, error)
}

type TaskStatusStore interface {
	SetTaskStatus(ctx context.Context, taskID, status string) error
	GetTaskStatus(ctx context.Context, taskID string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

type ObjectURLSigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

const downloadURLExpiry = 24 * time.Hour

// TaskUseCase is the gateway side of the asynchronous path: it records a
// task, mirrors its status, and hands the message to the broker. Submission
// returns as soon as the message is accepted; execution is decoupled from
// the caller's connection.
type TaskUseCase struct {
	Tasks     TaskRepo
	Status    TaskStatusStore
	Publisher Publisher
	Signer    ObjectURLSigner
	Retry     retry.Config
	Log       *zap.Logger
}

func NewTaskUseCase(tasks TaskRepo, status TaskStatusStore, publisher Publisher, signer ObjectURLSigner, log *zap.Logger) *TaskUseCase {
	return &TaskUseCase{
		Tasks:     tasks,
		Status:    status,
		Publisher: publisher,
		Signer:    signer,
		Retry:     retry.DefaultConfig(),
		Log:       log,
	}
}

// SubmitClassify enqueues a classification job for one sample.
func (u *TaskUseCase) SubmitClassify(ctx context.Context, sample *entity.Sample) (string, error) {
	if err := sample.Validate(); err != nil {
		return "", err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}
	return u.submit(ctx, &entity.TaskMessage{
		TaskID: uuid.New().String(),
		Kind:   entity.TaskKindClassify,
		Sample: sample,
	})
}

// SubmitExport enqueues a history export. A nil filter exports everything.
func (u *TaskUseCase) SubmitExport(ctx context.Context, filter *entity.ResultFilter) (string, error) {
	if filter != nil && filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return "", fmt.Errorf("%w: end precedes start", apperrors.ErrInvalidFilter)
	}
	return u.submit(ctx, &entity.TaskMessage{
		TaskID: uuid.New().String(),
		Kind:   entity.TaskKindExport,
		Filter: filter,
	})
}

func (u *TaskUseCase) submit(ctx context.Context, msg *entity.TaskMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode task message: %w", err)
	}

	now := time.Now().UTC()
	task := &entity.Task{
		TaskID:    msg.TaskID,
		Kind:      msg.Kind,
		Status:    entity.StatusPending,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Tasks.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("create task record: %w", err)
	}

	// The mirror is advisory; the Postgres row is authoritative.
	if err := u.Status.SetTaskStatus(ctx, msg.TaskID, string(entity.StatusPending)); err != nil {
		u.Log.Warn("failed to mirror task status",
			zap.String("task_id", msg.TaskID),
			zap.Error(err))
	}

	err = retry.Do(ctx, u.Retry, func() error {
		return u.Publisher.Publish(ctx, payload)
	})
	if err != nil {
		return "", fmt.Errorf("submit task %s: %w", msg.TaskID, err)
	}

	u.Log.Info("task submitted",
		zap.String("task_id", msg.TaskID),
		zap.String("kind", string(msg.Kind)))
	return msg.TaskID, nil
}

// GetTaskResult reports a task's state, with the classification outcome or
// export download link once it has succeeded. Pending and running states are
// answered from the Redis mirror when possible.
func (u *TaskUseCase) GetTaskResult(ctx context.Context, taskID string) (*entity.TaskResult, error) {
	if status, err := u.Status.GetTaskStatus(ctx, taskID); err == nil {
		switch entity.TaskStatus(status) {
		case entity.StatusPending, entity.StatusRunning:
			return &entity.TaskResult{TaskID: taskID, Status: entity.TaskStatus(status)}, nil
		}
	}

	task, err := u.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	result := &entity.TaskResult{
		TaskID:      task.TaskID,
		Kind:        task.Kind,
		Status:      task.Status,
		Error:       task.Error,
		CompletedAt: task.CompletedAt,
	}

	if task.Status != entity.StatusSucceeded {
		return result, nil
	}

	switch task.Kind {
	case entity.TaskKindClassify:
		if task.ResultJSON != "" {
			result.Result = &entity.ClassificationResult{}
			if err := json.Unmarshal([]byte(task.ResultJSON), result.Result); err != nil {
				return nil, fmt.Errorf("decode task result %s: %w", taskID, err)
			}
		}
	case entity.TaskKindExport:
		if task.ResultKey != "" {
			url, err := u.Signer.PresignedURL(ctx, task.ResultKey, downloadURLExpiry)
			if err != nil {
				return nil, fmt.Errorf("sign download url for task %s: %w", taskID, err)
			}
			result.DownloadURL = url
		}
	}
	return result, nil
}
