package entity

import (
	"fmt"
	"time"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// IonSelective holds the three ion-selective electrode concentrations.
type IonSelective struct {
	Na float64 `json:"Na"`
	K  float64 `json:"K"`
	Ca float64 `json:"Ca"`
}

// SensorReading is one multi-sensor capture from the e-tongue device.
// Immutable once constructed.
type SensorReading struct {
	Voltammetry  []float64    `json:"voltammetry"`
	PH           float64      `json:"pH"`
	Conductivity float64      `json:"tds_ec"`
	ORP          float64      `json:"orp"`
	Turbidity    float64      `json:"turbidity"`
	Temperature  float64      `json:"temperature"`
	Moisture     float64      `json:"moisture"`
	IonSelective IonSelective `json:"ion_selective"`
	RFResonator  float64      `json:"rf_resonator"`
}

// Sample is a reading attributed to a caller-unique sample id. The timestamp
// is optional and defaults to ingestion time.
type Sample struct {
	SampleID  string         `json:"sampleID"`
	Timestamp time.Time      `json:"timestamp"`
	Sensors   *SensorReading `json:"sensors"`
}

// Validate rejects malformed samples before they reach the cache or the
// pipeline. An empty voltammetry sequence is valid.
func (s *Sample) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: sample is nil", apperrors.ErrInvalidSample)
	}
	if s.SampleID == "" {
		return fmt.Errorf("%w: missing sampleID", apperrors.ErrInvalidSample)
	}
	if s.Sensors == nil {
		return fmt.Errorf("%w: missing sensor block", apperrors.ErrInvalidSample)
	}
	return nil
}
