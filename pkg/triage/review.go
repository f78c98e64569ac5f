package triage

import (
	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
)

// ReviewDecision is the outcome of the staff review policy.
type ReviewDecision struct {
	Required bool   `json:"required"`
	Rule     string `json:"rule,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Review rule identifiers, in evaluation order.
const (
	RuleHighAlways       = "high_always"
	RuleLowConfidenceMed = "low_confidence_medium"
	RuleSuspiciousLow    = "suspicious_low"
	RuleDisagreement     = "disagreement"
	RuleConfidenceGap    = "confidence_gap"
)

// DecideReview converts a severity, its confidence, and the gap report
// into a review decision. Rules are evaluated in order; the first match
// wins.
//
// The suspicious_low rule is intentionally inverted relative to
// low_confidence_medium: a confidently scored "low" is the signature of
// under-classification and gets pulled in for review.
func DecideReview(level Level, confidence float64, gap ensemble.GapReport, policy thresholds.Policy) ReviewDecision {
	if level == LevelHigh && policy.HighAlways {
		return ReviewDecision{
			Required: true,
			Rule:     RuleHighAlways,
			Reason:   "high severity is always reviewed",
		}
	}
	if level == LevelMedium && confidence < policy.MediumConfidenceThreshold {
		return ReviewDecision{
			Required: true,
			Rule:     RuleLowConfidenceMed,
			Reason:   "medium severity with low confidence",
		}
	}
	if level == LevelLow && confidence >= policy.LowConfidenceThreshold {
		return ReviewDecision{
			Required: true,
			Rule:     RuleSuspiciousLow,
			Reason:   "high-confidence low severity, possible under-classification",
		}
	}
	if gap.GapDetected && policy.OnDisagreement {
		return ReviewDecision{
			Required: true,
			Rule:     RuleDisagreement,
			Reason:   "models disagree on this message",
		}
	}
	if gap.GapDetected && policy.OnGap {
		return ReviewDecision{
			Required: true,
			Rule:     RuleConfidenceGap,
			Reason:   "confidence gap between models",
		}
	}
	return ReviewDecision{}
}
