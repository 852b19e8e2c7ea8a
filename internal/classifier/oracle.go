package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// Oracle is an opaque pre-trained scorer mapping a feature vector to a label
// and a confidence (the max of its probability distribution).
type Oracle interface {
	Predict(ctx context.Context, features []float64) (label string, confidence float64, err error)
}

// AdulterationDetector is the second oracle; it receives the unscaled
// feature vector and applies its own scaling internally.
type AdulterationDetector interface {
	Detect(ctx context.Context, features []float64) (bool, error)
}

type scalerParams struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func (s *scalerParams) transform(features []float64) ([]float64, error) {
	if len(s.Mean) != len(features) || len(s.Std) != len(features) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d",
			apperrors.ErrOracle, len(s.Mean), len(features))
	}
	scaled := make([]float64, len(features))
	for i, v := range features {
		std := s.Std[i]
		if std == 0 {
			std = 1
		}
		scaled[i] = (v - s.Mean[i]) / std
	}
	return scaled, nil
}

// CentroidModel classifies by nearest centroid in standardized feature
// space, with a softmax over negative squared distances standing in for the
// trained model's probability distribution.
type CentroidModel struct {
	Labels    []string             `json:"labels"`
	Scaler    scalerParams         `json:"scaler"`
	Centroids map[string][]float64 `json:"centroids"`
}

// LoadCentroidModel decodes and validates a classifier artifact.
func LoadCentroidModel(data []byte) (*CentroidModel, error) {
	var m CentroidModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode classifier artifact: %w", err)
	}
	if len(m.Labels) == 0 || len(m.Centroids) == 0 {
		return nil, fmt.Errorf("classifier artifact has no labels")
	}
	for _, label := range m.Labels {
		centroid, ok := m.Centroids[label]
		if !ok {
			return nil, fmt.Errorf("classifier artifact missing centroid for %q", label)
		}
		if len(centroid) != FeatureCount {
			return nil, fmt.Errorf("centroid for %q has %d features, want %d",
				label, len(centroid), FeatureCount)
		}
	}
	return &m, nil
}

func (m *CentroidModel) Predict(_ context.Context, features []float64) (string, float64, error) {
	if len(features) != FeatureCount {
		return "", 0, fmt.Errorf("%w: got %d features, want %d",
			apperrors.ErrOracle, len(features), FeatureCount)
	}
	scaled, err := m.Scaler.transform(features)
	if err != nil {
		return "", 0, err
	}

	scores := make([]float64, len(m.Labels))
	for i, label := range m.Labels {
		centroid := m.Centroids[label]
		dist := 0.0
		for j, v := range scaled {
			d := v - centroid[j]
			dist += d * d
		}
		scores[i] = -dist
	}

	// Softmax over negative squared distances, shifted for stability.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	sum := 0.0
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}

	best := 0
	for i := range probs {
		probs[i] /= sum
		if probs[i] > probs[best] {
			best = i
		}
	}
	return m.Labels[best], probs[best], nil
}

// LogisticDetector flags adulteration with a logistic regression over its
// internally scaled feature vector.
type LogisticDetector struct {
	Scaler    scalerParams `json:"scaler"`
	Weights   []float64    `json:"weights"`
	Bias      float64      `json:"bias"`
	Threshold float64      `json:"threshold"`
}

// LoadLogisticDetector decodes and validates a detector artifact.
func LoadLogisticDetector(data []byte) (*LogisticDetector, error) {
	var d LogisticDetector
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode detector artifact: %w", err)
	}
	if len(d.Weights) != FeatureCount {
		return nil, fmt.Errorf("detector artifact has %d weights, want %d",
			len(d.Weights), FeatureCount)
	}
	if d.Threshold <= 0 || d.Threshold >= 1 {
		d.Threshold = 0.5
	}
	return &d, nil
}

func (d *LogisticDetector) Detect(_ context.Context, features []float64) (bool, error) {
	if len(features) != FeatureCount {
		return false, fmt.Errorf("%w: got %d features, want %d",
			apperrors.ErrOracle, len(features), FeatureCount)
	}
	scaled, err := d.Scaler.transform(features)
	if err != nil {
		return false, err
	}
	z := d.Bias
	for i, v := range scaled {
		z += d.Weights[i] * v
	}
	p := 1 / (1 + math.Exp(-z))
	return p >= d.Threshold, nil
}
