package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

type ClassifyUseCase interface {
	Classify(ctx context.Context, sample *entity.Sample) (*entity.ClassificationResult, error)
	History(ctx context.Context, filter *entity.ResultFilter) ([]entity.StoredResult, error)
}

type TaskSubmitter interface {
	SubmitClassify(ctx context.Context, sample *entity.Sample) (string, error)
	SubmitExport(ctx context.Context, filter *entity.ResultFilter) (string, error)
	GetTaskResult(ctx context.Context, taskID string) (*entity.TaskResult, error)
}

type Handler struct {
	Classify ClassifyUseCase
	Tasks    TaskSubmitter
}

func NewHandler(classify ClassifyUseCase, tasks TaskSubmitter) *Handler {
	return &Handler{Classify: classify, Tasks: tasks}
}

// RegisterRoutes mounts the API under the given group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/classify", h.ClassifySample)
	g.POST("/classify/async", h.SubmitClassify)
	g.POST("/upload", h.UploadSamples)
	g.POST("/export", h.SubmitExport)
	g.GET("/tasks/:task_id", h.GetTaskResult)
	g.GET("/history", h.GetHistory)
}

// ClassifySample is the synchronous path: the caller waits for the
// classification, served from cache when the same reading was seen recently.
func (h *Handler) ClassifySample(c *gin.Context) {
	var sample entity.Sample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed sample payload"})
		return
	}

	result, err := h.Classify.Classify(c.Request.Context(), &sample)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SubmitClassify enqueues the same classification off the request path.
func (h *Handler) SubmitClassify(c *gin.Context) {
	var sample entity.Sample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed sample payload"})
		return
	}

	taskID, err := h.Tasks.SubmitClassify(c.Request.Context(), &sample)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": entity.StatusPending})
}

// UploadSamples ingests a batch, enqueueing one classify task per valid row.
// Invalid rows are counted, not fatal for the batch.
func (h *Handler) UploadSamples(c *gin.Context) {
	var samples []entity.Sample
	if err := c.ShouldBindJSON(&samples); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed sample batch"})
		return
	}

	uploaded := 0
	invalid := 0
	taskIDs := make([]string, 0, len(samples))
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			invalid++
			continue
		}
		taskID, err := h.Tasks.SubmitClassify(c.Request.Context(), &samples[i])
		if err != nil {
			respondError(c, err)
			return
		}
		taskIDs = append(taskIDs, taskID)
		uploaded++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"uploadedSamples": uploaded,
		"invalidRows":     invalid,
		"task_ids":        taskIDs,
	})
}

// SubmitExport enqueues a history export with an optional inclusive
// time-range filter.
func (h *Handler) SubmitExport(c *gin.Context) {
	var filter entity.ResultFilter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed export filter"})
			return
		}
	}

	taskID, err := h.Tasks.SubmitExport(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": entity.StatusPending})
}

// GetTaskResult polls a task's state and, once terminal, its outcome.
func (h *Handler) GetTaskResult(c *gin.Context) {
	taskID := c.Param("task_id")

	result, err := h.Tasks.GetTaskResult(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHistory lists persisted results, optionally narrowed by sample id and
// an inclusive time range.
func (h *Handler) GetHistory(c *gin.Context) {
	filter := entity.ResultFilter{SampleID: c.Query("sampleID")}
	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		filter.Start = &start
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}
		filter.End = &end
	}

	records, err := h.Classify.History(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history found"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// respondError maps the error taxonomy onto status codes: invalid input is
// the caller's fault, backend unavailability is temporary, everything else
// is internal.
func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsRetryable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrTaskNotFound) || errors.Is(err, apperrors.ErrResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
