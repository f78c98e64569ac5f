package learning

import "fmt"

// Parameters bound every adjustment the controller may make. A controller
// refuses to start with invalid parameters rather than inventing a bound.
type Parameters struct {
	LearningRate            float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxAdjustmentsPerDay    int     `yaml:"max_adjustments_per_day" json:"max_adjustments_per_day"`
	MinGlobalSensitivity    float64 `yaml:"min_global_sensitivity" json:"min_global_sensitivity"`
	MaxGlobalSensitivity    float64 `yaml:"max_global_sensitivity" json:"max_global_sensitivity"`
	MaxDrift                float64 `yaml:"max_drift" json:"max_drift"`
	MaxConfidenceAdjustment float64 `yaml:"max_confidence_adjustment" json:"max_confidence_adjustment"`
	Epsilon                 float64 `yaml:"epsilon" json:"epsilon"`
	HistoryCap              int     `yaml:"history_cap" json:"history_cap"`
	PhrasePrefixLen         int     `yaml:"phrase_prefix_len" json:"phrase_prefix_len"`
}

// DefaultParameters returns the documented defaults. Epsilon and the
// history cap are tunable constants, not hard contracts.
func DefaultParameters() Parameters {
	return Parameters{
		LearningRate:            0.05,
		MaxAdjustmentsPerDay:    20,
		MinGlobalSensitivity:    0.5,
		MaxGlobalSensitivity:    2.0,
		MaxDrift:                0.1,
		MaxConfidenceAdjustment: 0.15,
		Epsilon:                 1e-4,
		HistoryCap:              1000,
		PhrasePrefixLen:         40,
	}
}

// Validate rejects parameter sets that cannot bound an adjustment.
func (p Parameters) Validate() error {
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", p.LearningRate)
	}
	if p.MaxAdjustmentsPerDay < 1 {
		return fmt.Errorf("max_adjustments_per_day must be at least 1, got %d", p.MaxAdjustmentsPerDay)
	}
	if p.MinGlobalSensitivity <= 0 || p.MaxGlobalSensitivity <= p.MinGlobalSensitivity {
		return fmt.Errorf("sensitivity bounds invalid: min %g, max %g", p.MinGlobalSensitivity, p.MaxGlobalSensitivity)
	}
	if p.MaxDrift <= 0 {
		return fmt.Errorf("max_drift must be positive, got %g", p.MaxDrift)
	}
	if p.MaxConfidenceAdjustment <= 0 {
		return fmt.Errorf("max_confidence_adjustment must be positive, got %g", p.MaxConfidenceAdjustment)
	}
	if p.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", p.Epsilon)
	}
	if p.HistoryCap < 1 {
		return fmt.Errorf("history_cap must be at least 1, got %d", p.HistoryCap)
	}
	if p.PhrasePrefixLen < 1 {
		return fmt.Errorf("phrase_prefix_len must be at least 1, got %d", p.PhrasePrefixLen)
	}
	return nil
}
