package ensemble

import (
	"fmt"
	"strings"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// Strategy selects how model votes are combined.
type Strategy string

const (
	StrategyMajority  Strategy = "majority"
	StrategyWeighted  Strategy = "weighted"
	StrategyUnanimous Strategy = "unanimous"
)

// ParseStrategy rejects unknown strategy names at the boundary.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyMajority:
		return StrategyMajority, nil
	case StrategyWeighted:
		return StrategyWeighted, nil
	case StrategyUnanimous:
		return StrategyUnanimous, nil
	}
	return "", fmt.Errorf("unknown consensus strategy %q", raw)
}

// Sentinel predictions emitted by the builder itself rather than by any
// classifier.
const (
	PredictionUnknown      = "unknown"
	PredictionDisagreement = "disagreement"
)

// ConsensusResult is the single combined outcome for one request. It is
// immutable once built.
type ConsensusResult struct {
	Prediction     string           `json:"prediction"`
	Confidence     float64          `json:"confidence"`
	Method         Strategy         `json:"method"`
	AgreementLevel float64          `json:"agreement_level"`
	SuggestReview  bool             `json:"suggest_review"`
	RawVotes       []vote.ModelVote `json:"raw_votes"`
}

// DisagreementLevel grades how far apart the raw model votes are.
type DisagreementLevel string

const (
	DisagreementNone   DisagreementLevel = "none"
	DisagreementMedium DisagreementLevel = "medium"
	DisagreementHigh   DisagreementLevel = "high"
)

// GapReport captures divergence between raw per-model votes, inspected
// independently of the consensus tie-break so a forced majority can never
// hide real disagreement.
type GapReport struct {
	UniquePredictionCount int               `json:"unique_prediction_count"`
	ConfidenceSpread      float64           `json:"confidence_spread"`
	GapDetected           bool              `json:"gap_detected"`
	DisagreementLevel     DisagreementLevel `json:"disagreement_level"`
}
