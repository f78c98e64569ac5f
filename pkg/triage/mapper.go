package triage

import (
	"log"

	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
)

// Prediction labels recognized by the mapper. Anything outside this set is
// treated as an anomaly.
const (
	PredictionCrisis       = "crisis"
	PredictionMildCrisis   = "mild_crisis"
	PredictionNegative     = "negative"
	PredictionMildNegative = "mild_negative"
	PredictionSafe         = "safe"
	PredictionNeutral      = "neutral"
	PredictionPositive     = "positive"
)

// anomalyToLow is the confidence above which an unrecognized prediction
// still maps to low rather than none.
const anomalyToLow = 0.60

// MapLevel converts a consensus result into an ordinal crisis level using
// the active threshold set. Rules are evaluated in order; the first match
// wins. A crisis prediction never maps to none.
func MapLevel(res ensemble.ConsensusResult, ts thresholds.Set) Level {
	switch res.Prediction {
	case PredictionCrisis:
		switch {
		case res.Confidence >= ts.CrisisToHigh:
			return LevelHigh
		case res.Confidence >= ts.CrisisToMedium:
			return LevelMedium
		default:
			return LevelLow
		}
	case PredictionMildCrisis:
		if res.Confidence >= ts.MildCrisisToLow {
			return LevelLow
		}
		return LevelNone
	case PredictionNegative, PredictionMildNegative:
		if res.Confidence >= ts.NegativeToLow {
			return LevelLow
		}
		return LevelNone
	case ensemble.PredictionUnknown:
		if res.Confidence >= ts.UnknownToLow {
			return LevelLow
		}
		return LevelNone
	case PredictionSafe, PredictionNeutral, PredictionPositive:
		return LevelNone
	}

	log.Printf("[triage] anomalous prediction %q (confidence %.4f, mode %s)",
		res.Prediction, res.Confidence, ts.Mode)
	if res.Confidence > anomalyToLow {
		return LevelLow
	}
	return LevelNone
}

// ConfidenceBand grades the consensus confidence against the mode's
// ensemble thresholds. Diagnostic only; it never changes the level.
func ConfidenceBand(confidence float64, ts thresholds.Set) string {
	switch {
	case confidence >= ts.EnsembleHigh:
		return "high"
	case confidence >= ts.EnsembleMedium:
		return "medium"
	case confidence >= ts.EnsembleLow:
		return "low"
	default:
		return "floor"
	}
}
