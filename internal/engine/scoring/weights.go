// internal/engine/scoring/weights.go
package scoring

import (
	"fmt"
	"math"

	"creator-match/internal/common/config"
	apperrors "creator-match/internal/common/errors"
)

const weightTolerance = 1e-6

// Weights is the per-criterion weight vector. It must sum to 1.
type Weights struct {
	Category  float64 `json:"category"`
	Location  float64 `json:"location"`
	Audience  float64 `json:"audience"`
	Style     float64 `json:"style"`
	Influence float64 `json:"influence"`
}

func DefaultWeights() Weights {
	return Weights{Category: 0.30, Location: 0.20, Audience: 0.25, Style: 0.15, Influence: 0.10}
}

func WeightsFromConfig(cfg config.WeightsConfig) Weights {
	if cfg.IsZero() {
		return DefaultWeights()
	}
	return Weights{
		Category:  cfg.Category,
		Location:  cfg.Location,
		Audience:  cfg.Audience,
		Style:     cfg.Style,
		Influence: cfg.Influence,
	}
}

func (w Weights) Sum() float64 {
	return w.Category + w.Location + w.Audience + w.Style + w.Influence
}

// Validate fails with an InvalidConfiguration analysis error.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"category": w.Category, "location": w.Location, "audience": w.Audience,
		"style": w.Style, "influence": w.Influence,
	} {
		if v < 0 || math.IsNaN(v) {
			return apperrors.NewInvalidConfigurationError(fmt.Errorf("weight %s must be non-negative, got %v", name, v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return apperrors.NewInvalidConfigurationError(fmt.Errorf("weights must sum to 1.0, got %.6f", sum))
	}
	return nil
}

func (w Weights) values() [criteriaCount]float64 {
	return [criteriaCount]float64{w.Category, w.Location, w.Audience, w.Style, w.Influence}
}
