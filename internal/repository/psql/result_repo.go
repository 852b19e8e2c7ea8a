package psql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
)

// ResultRepo persists classification results keyed by sample id.
type ResultRepo struct {
	db *gorm.DB
}

func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// UpsertResult writes a result, overwriting any previous row for the same
// sample id. This keeps re-delivered classify jobs idempotent: last write
// wins, never a duplicate.
func (r *ResultRepo) UpsertResult(ctx context.Context, rec *entity.StoredResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sample_id"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// QueryResults returns stored results matching the filter, oldest first.
// Time bounds are inclusive on both ends when present.
func (r *ResultRepo) QueryResults(ctx context.Context, filter *entity.ResultFilter) ([]entity.StoredResult, error) {
	q := r.db.WithContext(ctx).Model(&entity.StoredResult{})
	if filter != nil {
		if filter.SampleID != "" {
			q = q.Where("sample_id = ?", filter.SampleID)
		}
		if filter.Start != nil {
			q = q.Where("tested_on >= ?", *filter.Start)
		}
		if filter.End != nil {
			q = q.Where("tested_on <= ?", *filter.End)
		}
	}

	var records []entity.StoredResult
	if err := q.Order("tested_on asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return records, nil
}
