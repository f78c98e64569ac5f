package triage

import (
	"testing"

	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
)

func TestDecideReview(t *testing.T) {
	policy := thresholds.DefaultPolicy()
	gap := ensemble.GapReport{}
	gapHit := ensemble.GapReport{GapDetected: true, UniquePredictionCount: 2}

	tests := []struct {
		name       string
		level      Level
		confidence float64
		gap        ensemble.GapReport
		policy     thresholds.Policy
		wantReview bool
		wantRule   string
	}{
		{
			name:       "high always reviewed",
			level:      LevelHigh,
			confidence: 0.99,
			gap:        gap,
			policy:     policy,
			wantReview: true,
			wantRule:   RuleHighAlways,
		},
		{
			name:       "medium low confidence",
			level:      LevelMedium,
			confidence: 0.40,
			gap:        gap,
			policy:     policy,
			wantReview: true,
			wantRule:   RuleLowConfidenceMed,
		},
		{
			name:       "medium confident passes",
			level:      LevelMedium,
			confidence: 0.60,
			gap:        gap,
			policy:     policy,
			wantReview: false,
		},
		{
			name:       "confident low pulled in",
			level:      LevelLow,
			confidence: 0.80,
			gap:        gap,
			policy:     policy,
			wantReview: true,
			wantRule:   RuleSuspiciousLow,
		},
		{
			name:       "uncertain low passes",
			level:      LevelLow,
			confidence: 0.50,
			gap:        gap,
			policy:     policy,
			wantReview: false,
		},
		{
			name:       "disagreement triggers review",
			level:      LevelNone,
			confidence: 0.90,
			gap:        gapHit,
			policy:     policy,
			wantReview: true,
			wantRule:   RuleDisagreement,
		},
		{
			name:       "gap rule when disagreement disabled",
			level:      LevelNone,
			confidence: 0.90,
			gap:        gapHit,
			policy: func() thresholds.Policy {
				p := policy
				p.OnDisagreement = false
				return p
			}(),
			wantReview: true,
			wantRule:   RuleConfidenceGap,
		},
		{
			name:       "gap ignored when both disabled",
			level:      LevelNone,
			confidence: 0.90,
			gap:        gapHit,
			policy: func() thresholds.Policy {
				p := policy
				p.OnDisagreement = false
				p.OnGap = false
				return p
			}(),
			wantReview: false,
		},
		{
			name:       "high skipped when disabled",
			level:      LevelHigh,
			confidence: 0.99,
			gap:        gap,
			policy: func() thresholds.Policy {
				p := policy
				p.HighAlways = false
				return p
			}(),
			wantReview: false,
		},
		{
			name:       "none without gap passes",
			level:      LevelNone,
			confidence: 0.95,
			gap:        gap,
			policy:     policy,
			wantReview: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideReview(tt.level, tt.confidence, tt.gap, tt.policy)
			if got.Required != tt.wantReview {
				t.Fatalf("Required = %v, want %v", got.Required, tt.wantReview)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", got.Rule, tt.wantRule)
			}
			if got.Required && got.Reason == "" {
				t.Error("Reason is empty for a required review")
			}
		})
	}
}

func TestDecideReviewOrder(t *testing.T) {
	// A high level with a detected gap must attribute review to the
	// high_always rule, not the gap rules.
	policy := thresholds.DefaultPolicy()
	gap := ensemble.GapReport{GapDetected: true, UniquePredictionCount: 3}

	got := DecideReview(LevelHigh, 0.90, gap, policy)
	if !got.Required || got.Rule != RuleHighAlways {
		t.Errorf("DecideReview = %+v, want required via %s", got, RuleHighAlways)
	}
}
