package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/cache"
)

type Classifier interface {
	Classify(ctx context.Context, sample *entity.Sample) (*entity.ClassificationResult, error)
}

type ResultStore interface {
	UpsertResult(ctx context.Context, rec *entity.StoredResult) error
	QueryResults(ctx context.Context, filter *entity.ResultFilter) ([]entity.StoredResult, error)
}

// ClassifyUseCase is the synchronous request path: validate, fingerprint,
// classify through the cache, persist.
type ClassifyUseCase struct {
	Cache    *cache.Cache
	Pipeline Classifier
	Results  ResultStore
	TTL      time.Duration
	Log      *zap.Logger
}

func NewClassifyUseCase(c *cache.Cache, pipeline Classifier, results ResultStore, ttl time.Duration, log *zap.Logger) *ClassifyUseCase {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &ClassifyUseCase{
		Cache:    c,
		Pipeline: pipeline,
		Results:  results,
		TTL:      ttl,
		Log:      log,
	}
}

// Classify runs the cache-aside path. The fingerprint covers the sample
// identity and the full sensor payload but not the ingestion timestamp, so
// a re-submitted reading hits the cache. When the cache backend is down the
// request degrades to a direct pipeline call instead of failing.
func (u *ClassifyUseCase) Classify(ctx context.Context, sample *entity.Sample) (*entity.ClassificationResult, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	key, err := cache.Derive("classify_sample",
		[]any{sample.SampleID},
		map[string]any{"sensors": sample.Sensors})
	if err != nil {
		return nil, err
	}

	payload, err := u.Cache.GetOrCompute(ctx, key, u.TTL, func() ([]byte, error) {
		result, err := u.Pipeline.Classify(ctx, sample)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})

	var result *entity.ClassificationResult
	switch {
	case errors.Is(err, apperrors.ErrCacheUnavailable):
		u.Log.Warn("cache backend unavailable, computing directly",
			zap.String("sample_id", sample.SampleID),
			zap.Error(err))
		if result, err = u.Pipeline.Classify(ctx, sample); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		result = &entity.ClassificationResult{}
		if err := json.Unmarshal(payload, result); err != nil {
			return nil, fmt.Errorf("decode cached result: %w", err)
		}
	}

	if err := u.Results.UpsertResult(ctx, entity.NewStoredResult(sample, result)); err != nil {
		return nil, fmt.Errorf("persist result for sample %s: %w", sample.SampleID, err)
	}
	return result, nil
}

// History returns persisted results matching the filter.
func (u *ClassifyUseCase) History(ctx context.Context, filter *entity.ResultFilter) ([]entity.StoredResult, error) {
	return u.Results.QueryResults(ctx, filter)
}
