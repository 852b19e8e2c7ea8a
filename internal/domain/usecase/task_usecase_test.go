package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTaskFixture() (*TaskUseCase, *fakeTaskRepo, *fakeStatusStore, *fakePublisher) {
	tasks := newFakeTaskRepo()
	status := newFakeStatusStore()
	publisher := &fakePublisher{}
	uc := NewTaskUseCase(tasks, status, publisher, &fakeSigner{}, zap.NewNop())
	uc.Retry = fastRetry()
	return uc, tasks, status, publisher
}

func TestSubmitClassifyRecordsAndPublishes(t *testing.T) {
	uc, tasks, status, publisher := newTaskFixture()

	taskID, err := uc.SubmitClassify(context.Background(), testSample("s-1"))
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	task, err := tasks.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskKindClassify, task.Kind)
	assert.Equal(t, entity.StatusPending, task.Status)

	mirrored, _ := status.GetTaskStatus(context.Background(), taskID)
	assert.Equal(t, string(entity.StatusPending), mirrored)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, taskID, publisher.messages[0].TaskID)
	assert.Equal(t, "s-1", publisher.messages[0].Sample.SampleID)
}

func TestSubmitClassifyRejectsInvalidSample(t *testing.T) {
	uc, _, _, publisher := newTaskFixture()

	_, err := uc.SubmitClassify(context.Background(), &entity.Sample{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSample)
	assert.Zero(t, publisher.calls)
}

func TestSubmitRetriesTransientPublishFailure(t *testing.T) {
	uc, _, _, publisher := newTaskFixture()
	publisher.failures = 2

	taskID, err := uc.SubmitClassify(context.Background(), testSample("s-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)
	assert.Equal(t, 3, publisher.calls)
}

func TestSubmitFailsWhenBrokerStaysDown(t *testing.T) {
	uc, _, _, publisher := newTaskFixture()
	publisher.failures = 100

	_, err := uc.SubmitClassify(context.Background(), testSample("s-1"))
	assert.ErrorIs(t, err, apperrors.ErrBrokerUnavailable)
	assert.Equal(t, uc.Retry.MaxAttempts, publisher.calls)
}

func TestSubmitExportValidatesRange(t *testing.T) {
	uc, _, _, _ := newTaskFixture()
	start := time.Now()
	end := start.Add(-time.Hour)

	_, err := uc.SubmitExport(context.Background(), &entity.ResultFilter{Start: &start, End: &end})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestSubmitExportWithoutFilter(t *testing.T) {
	uc, _, _, publisher := newTaskFixture()

	taskID, err := uc.SubmitExport(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, entity.TaskKindExport, publisher.messages[0].Kind)
	assert.Nil(t, publisher.messages[0].Filter)
	assert.Equal(t, taskID, publisher.messages[0].TaskID)
}

func TestGetTaskResultPendingFromMirror(t *testing.T) {
	uc, _, status, _ := newTaskFixture()
	require.NoError(t, status.SetTaskStatus(context.Background(), "t-1", string(entity.StatusRunning)))

	// No Postgres row exists; the mirror alone answers pre-terminal polls.
	res, err := uc.GetTaskResult(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRunning, res.Status)
	assert.Nil(t, res.Result)
}

func TestGetTaskResultSucceededClassify(t *testing.T) {
	uc, tasks, _, _ := newTaskFixture()

	encoded, err := json.Marshal(testResult())
	require.NoError(t, err)
	require.NoError(t, tasks.CreateTask(context.Background(), &entity.Task{
		TaskID: "t-1",
		Kind:   entity.TaskKindClassify,
		Status: entity.StatusPending,
	}))
	require.NoError(t, tasks.MarkSucceeded(context.Background(), "t-1", string(encoded), ""))

	res, err := uc.GetTaskResult(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSucceeded, res.Status)
	require.NotNil(t, res.Result)
	assert.Equal(t, "Tulsi", res.Result.HerbName)
	assert.NotNil(t, res.CompletedAt)
}

func TestGetTaskResultSucceededExport(t *testing.T) {
	uc, tasks, _, _ := newTaskFixture()

	require.NoError(t, tasks.CreateTask(context.Background(), &entity.Task{
		TaskID: "t-2",
		Kind:   entity.TaskKindExport,
		Status: entity.StatusPending,
	}))
	require.NoError(t, tasks.MarkSucceeded(context.Background(), "t-2", `{"rows":3}`, "tasks/t-2/export.csv"))

	res, err := uc.GetTaskResult(context.Background(), "t-2")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.local/tasks/t-2/export.csv", res.DownloadURL)
}

func TestGetTaskResultFailed(t *testing.T) {
	uc, tasks, _, _ := newTaskFixture()

	require.NoError(t, tasks.CreateTask(context.Background(), &entity.Task{
		TaskID: "t-3",
		Kind:   entity.TaskKindClassify,
		Status: entity.StatusPending,
	}))
	require.NoError(t, tasks.MarkFailed(context.Background(), "t-3", "oracle scoring failed"))

	res, err := uc.GetTaskResult(context.Background(), "t-3")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, res.Status)
	assert.Equal(t, "oracle scoring failed", res.Error)
	assert.Nil(t, res.Result)
}

func TestGetTaskResultUnknownTask(t *testing.T) {
	uc, _, _, _ := newTaskFixture()

	_, err := uc.GetTaskResult(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}
