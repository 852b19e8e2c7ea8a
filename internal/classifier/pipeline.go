// Package classifier implements the classification pipeline: feature
// extraction, the scoring oracles, and post-processing into the final
// result. The pipeline variant is chosen once at process start and holds no
// mutable state, so a single instance serves the gateway and the worker.
package classifier

import (
	"context"
	"fmt"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// fallbackHerb is reported by the rule-based variant, which cannot identify
// the substance.
const fallbackHerb = "Tulsi"

// Pipeline is a pure function of sample to result. With both oracles it runs
// the model-backed variant; constructed via NewFallback it runs closed-form
// arithmetic instead.
type Pipeline struct {
	oracle   Oracle
	detector AdulterationDetector
}

// NewModelBacked wires the two oracles loaded at startup.
func NewModelBacked(oracle Oracle, detector AdulterationDetector) (*Pipeline, error) {
	if oracle == nil || detector == nil {
		return nil, fmt.Errorf("%w: both oracles are required", apperrors.ErrNoPipeline)
	}
	return &Pipeline{oracle: oracle, detector: detector}, nil
}

// NewFallback builds the rule-based variant used when no trained artifacts
// are available at startup.
func NewFallback() *Pipeline {
	return &Pipeline{}
}

// ModelBacked reports which variant this process runs.
func (p *Pipeline) ModelBacked() bool {
	return p.oracle != nil
}

// Classify produces a ClassificationResult for a validated sample.
func (p *Pipeline) Classify(ctx context.Context, sample *entity.Sample) (*entity.ClassificationResult, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if !p.ModelBacked() {
		return p.classifyFallback(sample), nil
	}

	features := ExtractFeatures(sample.Sensors)

	label, confidence, err := p.oracle.Predict(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("predict sample %s: %w", sample.SampleID, err)
	}

	// The detector takes the unscaled vector; it scales internally.
	adulterated, err := p.detector.Detect(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("detect adulteration for sample %s: %w", sample.SampleID, err)
	}

	purity := confidence * 100
	if adulterated {
		purity *= 0.7
	}
	purity = clamp(purity, 0, 100)

	return &entity.ClassificationResult{
		HerbName:         label,
		PurityPercent:    purity,
		AdulterationFlag: adulterated,
		ConfidenceScore:  confidence,
		TasteProfile:     TasteProfile(label, adulterated),
		Recommendation:   Recommend(adulterated, purity),
	}, nil
}

func (p *Pipeline) classifyFallback(sample *entity.Sample) *entity.ClassificationResult {
	purity := clamp(90+(sample.Sensors.PH-7)*2, 0, 100)
	adulterated := purity < 85
	confidence := 0.8 + purity/100*0.2

	taste := []string{"sweet", "mild"}
	if adulterated {
		taste = []string{"bitter", "pungent"}
	}

	return &entity.ClassificationResult{
		HerbName:         fallbackHerb,
		PurityPercent:    purity,
		AdulterationFlag: adulterated,
		ConfidenceScore:  confidence,
		TasteProfile:     taste,
		Recommendation:   Recommend(adulterated, purity),
	}
}
