package ensemble

import "github.com/zen-systems/crisisgate/pkg/vote"

// DefaultGapThreshold is the confidence spread above which a gap is
// reported when no mode-specific threshold is configured.
const DefaultGapThreshold = 0.25

// DetectGap inspects the raw per-model votes for divergence. It must run
// on the raw votes, not on the consensus winner.
func DetectGap(votes vote.Set, gapThreshold float64) GapReport {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}

	valid := votes.Valid()
	if len(valid) == 0 {
		return GapReport{DisagreementLevel: DisagreementNone}
	}

	unique := make(map[string]bool)
	minScore, maxScore := 1.0, 0.0
	for _, v := range valid {
		top, _ := v.Top()
		unique[top.Label] = true
		if top.Score < minScore {
			minScore = top.Score
		}
		if top.Score > maxScore {
			maxScore = top.Score
		}
	}

	spread := maxScore - minScore
	report := GapReport{
		UniquePredictionCount: len(unique),
		ConfidenceSpread:      spread,
		GapDetected:           len(unique) > 1 || spread > gapThreshold,
	}

	switch {
	case len(unique) > 2:
		report.DisagreementLevel = DisagreementHigh
	case len(unique) == 2:
		report.DisagreementLevel = DisagreementMedium
	default:
		report.DisagreementLevel = DisagreementNone
	}
	return report
}
