package engine

import (
	"math"

	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/triage"
)

// SchemaDecisionV1 identifies the decision document handed downstream.
const SchemaDecisionV1 = "crisisgate.decision.v1"

// Decision is the single actionable outcome for one message. All floats
// are rounded to 4 decimals for stable comparison and logging.
type Decision struct {
	Schema              string              `json:"schema"`
	CrisisLevel         triage.Level        `json:"crisis_level"`
	ConsensusPrediction string              `json:"consensus_prediction"`
	ConsensusConfidence float64             `json:"consensus_confidence"`
	ConsensusMethod     string              `json:"consensus_method"`
	AgreementLevel      float64             `json:"agreement_level"`
	ConfidenceBand      string              `json:"confidence_band"`
	Mode                string              `json:"mode"`
	GapDetected         bool                `json:"gap_detected"`
	Gap                 ensemble.GapReport  `json:"gap_report"`
	RequiresStaffReview bool                `json:"requires_staff_review"`
	ReviewRule          string              `json:"review_rule,omitempty"`
	ReviewReason        string              `json:"review_reason,omitempty"`
	PerModelDiagnostics []ModelDiagnostic   `json:"per_model_diagnostics"`
	Degraded            bool                `json:"degraded,omitempty"`
	DegradedReason      string              `json:"degraded_reason,omitempty"`
}

// ModelDiagnostic reports what one classifier contributed.
type ModelDiagnostic struct {
	ModelID  string  `json:"model_id"`
	Adapter  string  `json:"adapter,omitempty"`
	Model    string  `json:"model,omitempty"`
	TopLabel string  `json:"top_label,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Failed   bool    `json:"failed,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// round4 rounds to 4 decimals for stable output.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// roundGap returns a copy of the report with its spread rounded.
func roundGap(g ensemble.GapReport) ensemble.GapReport {
	g.ConfidenceSpread = round4(g.ConfidenceSpread)
	return g
}
