package entity

import (
	"encoding/json"
	"time"
)

// ClassificationResult is the final output of one pipeline invocation.
// Purity, confidence and the adulteration flag are produced together and are
// mutually consistent; immutable once produced.
type ClassificationResult struct {
	HerbName         string   `json:"herbName"`
	PurityPercent    float64  `json:"purityPercent"`
	AdulterationFlag bool     `json:"adulterationFlag"`
	ConfidenceScore  float64  `json:"confidenceScore"`
	TasteProfile     []string `json:"tasteProfile"`
	Recommendation   string   `json:"recommendation"`
}

// StoredResult is the persisted classification row, keyed by sample id so
// re-running a classify job overwrites rather than duplicates.
type StoredResult struct {
	SampleID         string    `gorm:"primaryKey" json:"sampleID"`
	HerbName         string    `gorm:"not null" json:"herbName"`
	PurityPercent    float64   `json:"purityPercent"`
	AdulterationFlag bool      `json:"adulterationFlag"`
	ConfidenceScore  float64   `json:"confidenceScore"`
	TasteProfile     string    `gorm:"type:text" json:"tasteProfile"`
	Recommendation   string    `json:"recommendation"`
	TestedOn         time.Time `gorm:"index" json:"testedOn"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// NewStoredResult flattens a result into its persisted form. The taste
// profile is stored JSON-encoded in a single column.
func NewStoredResult(sample *Sample, result *ClassificationResult) *StoredResult {
	taste, _ := json.Marshal(result.TasteProfile)
	return &StoredResult{
		SampleID:         sample.SampleID,
		HerbName:         result.HerbName,
		PurityPercent:    result.PurityPercent,
		AdulterationFlag: result.AdulterationFlag,
		ConfidenceScore:  result.ConfidenceScore,
		TasteProfile:     string(taste),
		Recommendation:   result.Recommendation,
		TestedOn:         sample.Timestamp,
	}
}

// ResultFilter narrows a history or export query. Bounds are inclusive on
// both ends when present.
type ResultFilter struct {
	SampleID string     `json:"sampleID,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}
