package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/retry"
)

type WorkerTaskRepo interface {
	UpdateTaskStatus(ctx context.Context, taskID string, status entity.TaskStatus) error
	MarkSucceeded(ctx context.Context, taskID, resultJSON, resultKey string) error
	MarkFailed(ctx context.Context, taskID, reason string) error
}

type ExportStore interface {
	UploadCSV(ctx context.Context, key string, data []byte) error
}

// WorkerUseCase executes claimed tasks. Each handler is idempotent so
// broker redelivery after a crash converges to the same persisted state.
type WorkerUseCase struct {
	Pipeline Classifier
	Results  ResultStore
	Tasks    WorkerTaskRepo
	Status   TaskStatusStore
	Exports  ExportStore
	Retry    retry.Config
	Log      *zap.Logger
}

func NewWorkerUseCase(pipeline Classifier, results ResultStore, tasks WorkerTaskRepo, status TaskStatusStore, exports ExportStore, log *zap.Logger) *WorkerUseCase {
	return &WorkerUseCase{
		Pipeline: pipeline,
		Results:  results,
		Tasks:    tasks,
		Status:   status,
		Exports:  exports,
		Retry:    retry.DefaultConfig(),
		Log:      log,
	}
}

// HandleTask runs one task under the bounded retry policy. A task that
// exhausts its attempts is marked FAILED with the final reason; it is never
// dropped silently and never resurrected. The returned error is non-nil only
// when the terminal state itself could not be recorded, in which case the
// delivery is requeued.
func (u *WorkerUseCase) HandleTask(ctx context.Context, msg *entity.TaskMessage) error {
	if msg.TaskID == "" {
		u.Log.Error("task message without id, dropping")
		return nil
	}

	if err := u.Tasks.UpdateTaskStatus(ctx, msg.TaskID, entity.StatusRunning); err != nil {
		return fmt.Errorf("mark task %s running: %w", msg.TaskID, err)
	}
	u.mirrorStatus(ctx, msg.TaskID, entity.StatusRunning)

	var resultJSON, resultKey string
	run := func() error {
		var err error
		switch msg.Kind {
		case entity.TaskKindClassify:
			resultJSON, err = u.runClassify(ctx, msg)
		case entity.TaskKindExport:
			resultJSON, resultKey, err = u.runExport(ctx, msg)
		default:
			err = retry.NonRetryable(fmt.Errorf("unknown task kind %q", msg.Kind))
		}
		return err
	}

	if err := retry.Do(ctx, u.Retry, run); err != nil {
		u.Log.Error("task failed after retries",
			zap.String("task_id", msg.TaskID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err))
		if markErr := u.Tasks.MarkFailed(ctx, msg.TaskID, err.Error()); markErr != nil {
			return fmt.Errorf("mark task %s failed: %w", msg.TaskID, markErr)
		}
		u.mirrorStatus(ctx, msg.TaskID, entity.StatusFailed)
		return nil
	}

	if err := u.Tasks.MarkSucceeded(ctx, msg.TaskID, resultJSON, resultKey); err != nil {
		return fmt.Errorf("mark task %s succeeded: %w", msg.TaskID, err)
	}
	u.mirrorStatus(ctx, msg.TaskID, entity.StatusSucceeded)

	u.Log.Info("task completed",
		zap.String("task_id", msg.TaskID),
		zap.String("kind", string(msg.Kind)))
	return nil
}

// runClassify executes the pipeline and upserts the result by sample id, so
// re-running the same job overwrites rather than duplicates.
func (u *WorkerUseCase) runClassify(ctx context.Context, msg *entity.TaskMessage) (string, error) {
	if msg.Sample == nil {
		return "", retry.NonRetryable(fmt.Errorf("%w: classify task without sample", apperrors.ErrInvalidSample))
	}
	if err := msg.Sample.Validate(); err != nil {
		return "", retry.NonRetryable(err)
	}
	if msg.Sample.Timestamp.IsZero() {
		msg.Sample.Timestamp = time.Now().UTC()
	}

	result, err := u.Pipeline.Classify(ctx, msg.Sample)
	if err != nil {
		return "", err
	}
	if err := u.Results.UpsertResult(ctx, entity.NewStoredResult(msg.Sample, result)); err != nil {
		return "", fmt.Errorf("persist result for sample %s: %w", msg.Sample.SampleID, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", retry.NonRetryable(fmt.Errorf("encode result: %w", err))
	}
	return string(encoded), nil
}

// runExport renders matching history rows to CSV and uploads the payload.
func (u *WorkerUseCase) runExport(ctx context.Context, msg *entity.TaskMessage) (string, string, error) {
	records, err := u.Results.QueryResults(ctx, msg.Filter)
	if err != nil {
		return "", "", err
	}

	csv := RenderExportCSV(records)
	key := fmt.Sprintf("tasks/%s/export.csv", msg.TaskID)
	if err := u.Exports.UploadCSV(ctx, key, []byte(csv)); err != nil {
		return "", "", err
	}

	summary, err := json.Marshal(map[string]any{"rows": len(records), "key": key})
	if err != nil {
		return "", "", retry.NonRetryable(fmt.Errorf("encode export summary: %w", err))
	}
	return string(summary), key, nil
}

func (u *WorkerUseCase) mirrorStatus(ctx context.Context, taskID string, status entity.TaskStatus) {
	if err := u.Status.SetTaskStatus(ctx, taskID, string(status)); err != nil {
		u.Log.Warn("failed to mirror task status",
			zap.String("task_id", taskID),
			zap.Error(err))
	}
}

// exportHeader is the fixed column order of history exports.
const exportHeader = "sampleID,herbName,purityPercent,adulterationFlag,timestamp"

// RenderExportCSV writes one header row and one row per record. Fields are
// concatenated directly; embedded delimiters are not escaped (known
// limitation of the export format).
func RenderExportCSV(records []entity.StoredResult) string {
	var b strings.Builder
	b.WriteString(exportHeader)
	b.WriteByte('\n')
	for _, rec := range records {
		b.WriteString(rec.SampleID)
		b.WriteByte(',')
		b.WriteString(rec.HerbName)
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(rec.PurityPercent, 'f', 2, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(rec.AdulterationFlag))
		b.WriteByte(',')
		b.WriteString(rec.TestedOn.UTC().Format(time.RFC3339))
		b.WriteByte('\n')
	}
	return b.String()
}
