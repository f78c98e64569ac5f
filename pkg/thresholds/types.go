package thresholds

// Set holds the mode-keyed thresholds that drive crisis level mapping.
// Invariants: every value is in [0,1], crisis_to_high > crisis_to_medium,
// and ensemble_high > ensemble_medium > ensemble_low.
type Set struct {
	Mode            string  `json:"mode"`
	CrisisToHigh    float64 `json:"crisis_to_high"`
	CrisisToMedium  float64 `json:"crisis_to_medium"`
	MildCrisisToLow float64 `json:"mild_crisis_to_low"`
	NegativeToLow   float64 `json:"negative_to_low"`
	UnknownToLow    float64 `json:"unknown_to_low"`
	EnsembleHigh    float64 `json:"ensemble_high"`
	EnsembleMedium  float64 `json:"ensemble_medium"`
	EnsembleLow     float64 `json:"ensemble_low"`
	GapThreshold    float64 `json:"gap_threshold"`
}

// Policy holds the shared knobs used by the review policy and the
// learning controller. Invariant: LowConfidenceThreshold is strictly
// greater than MediumConfidenceThreshold.
type Policy struct {
	HighAlways                bool    `json:"high_always"`
	MediumConfidenceThreshold float64 `json:"medium_confidence_threshold"`
	LowConfidenceThreshold    float64 `json:"low_confidence_threshold"`
	OnDisagreement            bool    `json:"on_disagreement"`
	OnGap                     bool    `json:"on_gap"`
	FeedbackWeight            float64 `json:"feedback_weight"`
	SafetyBias                float64 `json:"safety_bias"`
}

// DefaultSet returns the built-in threshold set for a mode. Unknown modes
// get the consensus defaults with the requested mode name, so lookups
// never fail.
func DefaultSet(mode string) Set {
	if s, ok := defaultSets[mode]; ok {
		return s
	}
	s := defaultSets["consensus"]
	s.Mode = mode
	return s
}

// DefaultPolicy returns the built-in shared policy.
func DefaultPolicy() Policy {
	return Policy{
		HighAlways:                true,
		MediumConfidenceThreshold: 0.45,
		LowConfidenceThreshold:    0.75,
		OnDisagreement:            true,
		OnGap:                     true,
		FeedbackWeight:            0.3,
		SafetyBias:                0.1,
	}
}

// defaultSets are the documented built-in thresholds per ensemble mode.
var defaultSets = map[string]Set{
	"consensus": {
		Mode:            "consensus",
		CrisisToHigh:    0.55,
		CrisisToMedium:  0.30,
		MildCrisisToLow: 0.40,
		NegativeToLow:   0.60,
		UnknownToLow:    0.70,
		EnsembleHigh:    0.70,
		EnsembleMedium:  0.45,
		EnsembleLow:     0.25,
		GapThreshold:    0.25,
	},
	"majority": {
		Mode:            "majority",
		CrisisToHigh:    0.60,
		CrisisToMedium:  0.35,
		MildCrisisToLow: 0.45,
		NegativeToLow:   0.60,
		UnknownToLow:    0.70,
		EnsembleHigh:    0.75,
		EnsembleMedium:  0.50,
		EnsembleLow:     0.30,
		GapThreshold:    0.25,
	},
	"weighted": {
		Mode:            "weighted",
		CrisisToHigh:    0.50,
		CrisisToMedium:  0.28,
		MildCrisisToLow: 0.38,
		NegativeToLow:   0.55,
		UnknownToLow:    0.65,
		EnsembleHigh:    0.65,
		EnsembleMedium:  0.40,
		EnsembleLow:     0.22,
		GapThreshold:    0.30,
	},
}

// Modes returns the mode names with built-in defaults, sorted.
func Modes() []string {
	return []string{"consensus", "majority", "weighted"}
}
