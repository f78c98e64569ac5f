package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/zen-systems/crisisgate/pkg/adapter"
	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/learning"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
	"github.com/zen-systems/crisisgate/pkg/triage"
	"github.com/zen-systems/crisisgate/pkg/vote"
)

func crisisLabels(score float64) []vote.LabelScore {
	return []vote.LabelScore{{Label: "crisis", Score: score}}
}

func mockSlot(id string, a adapter.Adapter) Classifier {
	return Classifier{ID: id, Adapter: a, Model: "mock-1"}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New() error = nil with no classifiers, want error")
	}
	if _, err := New([]Classifier{{ID: "m1"}}, nil); err == nil {
		t.Error("New() error = nil with nil adapter, want error")
	}
}

func TestStrategyForMode(t *testing.T) {
	tests := []struct {
		mode string
		want ensemble.Strategy
	}{
		{mode: "majority", want: ensemble.StrategyMajority},
		{mode: "weighted", want: ensemble.StrategyWeighted},
		{mode: "consensus", want: ensemble.StrategyUnanimous},
		{mode: "anything_else", want: ensemble.StrategyUnanimous},
	}

	for _, tt := range tests {
		e, err := New([]Classifier{mockSlot("m1", adapter.NewMockAdapter("mock"))}, nil, WithMode(tt.mode))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := e.Strategy(); got != tt.want {
			t.Errorf("mode %q strategy = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestAssessMajority(t *testing.T) {
	msg := "I want to end it all"
	mk := func(id string, labels []vote.LabelScore) Classifier {
		return mockSlot(id, adapter.NewMockAdapter(id).Respond(msg, labels))
	}

	e, err := New([]Classifier{
		mk("m1", crisisLabels(0.9)),
		mk("m2", crisisLabels(0.8)),
		mk("m3", []vote.LabelScore{{Label: "negative", Score: 0.7}}),
	}, nil, WithMode("majority"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d, err := e.Assess(context.Background(), msg)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if d.Schema != SchemaDecisionV1 {
		t.Errorf("Schema = %q, want %q", d.Schema, SchemaDecisionV1)
	}
	if d.ConsensusPrediction != "crisis" {
		t.Errorf("ConsensusPrediction = %q, want crisis", d.ConsensusPrediction)
	}
	if d.ConsensusConfidence != 0.85 {
		t.Errorf("ConsensusConfidence = %v, want 0.85", d.ConsensusConfidence)
	}
	if d.CrisisLevel != triage.LevelHigh {
		t.Errorf("CrisisLevel = %v, want high", d.CrisisLevel)
	}
	if !d.RequiresStaffReview || d.ReviewRule != triage.RuleHighAlways {
		t.Errorf("review = %v via %q, want required via high_always", d.RequiresStaffReview, d.ReviewRule)
	}
	if !d.GapDetected {
		t.Error("GapDetected = false, want true for split predictions")
	}
	if d.Mode != "majority" {
		t.Errorf("Mode = %q, want majority", d.Mode)
	}
	if len(d.PerModelDiagnostics) != 3 {
		t.Errorf("PerModelDiagnostics length = %d, want 3", len(d.PerModelDiagnostics))
	}
}

func TestAssessFailedClassifierExcluded(t *testing.T) {
	msg := "rough day"
	e, err := New([]Classifier{
		mockSlot("m1", adapter.NewMockAdapter("m1").Respond(msg, crisisLabels(0.8))),
		mockSlot("m2", adapter.NewMockAdapter("m2").Respond(msg, crisisLabels(0.6))),
		mockSlot("m3", adapter.NewMockAdapter("m3").Fail(fmt.Errorf("backend down"))),
	}, nil, WithMode("majority"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d, err := e.Assess(context.Background(), msg)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if d.ConsensusPrediction != "crisis" {
		t.Errorf("ConsensusPrediction = %q, want crisis from the surviving votes", d.ConsensusPrediction)
	}
	if d.Degraded {
		t.Error("Degraded = true, want false with two valid votes")
	}

	var failed int
	for _, diag := range d.PerModelDiagnostics {
		if diag.Failed {
			failed++
			if diag.Error == "" {
				t.Error("failed diagnostic has no error text")
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed diagnostics = %d, want 1", failed)
	}
}

func TestAssessAllClassifiersFailed(t *testing.T) {
	e, err := New([]Classifier{
		mockSlot("m1", adapter.NewMockAdapter("m1").Fail(fmt.Errorf("down"))),
		mockSlot("m2", adapter.NewMockAdapter("m2").Fail(fmt.Errorf("down"))),
	}, nil, WithMode("majority"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d, err := e.Assess(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if d.ConsensusPrediction != ensemble.PredictionUnknown {
		t.Errorf("ConsensusPrediction = %q, want unknown", d.ConsensusPrediction)
	}
	if !d.Degraded {
		t.Error("Degraded = false, want true with zero valid votes")
	}
	if !d.RequiresStaffReview || d.ReviewRule != "consensus_suggestion" {
		t.Errorf("review = %v via %q, want required via consensus_suggestion", d.RequiresStaffReview, d.ReviewRule)
	}
}

func TestAssessVotesWeighted(t *testing.T) {
	e, err := New([]Classifier{
		{ID: "m1", Adapter: adapter.NewMockAdapter("m1"), Weight: 0.6},
		{ID: "m2", Adapter: adapter.NewMockAdapter("m2"), Weight: 0.4},
	}, nil, WithMode("weighted"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d, err := e.AssessVotes([]vote.ModelVote{
		{ModelID: "m1", Labels: crisisLabels(0.5)},
		{ModelID: "m2", Labels: []vote.LabelScore{{Label: "safe", Score: 0.9}}},
	})
	if err != nil {
		t.Fatalf("AssessVotes() error = %v", err)
	}
	if d.ConsensusPrediction != "safe" {
		t.Errorf("ConsensusPrediction = %q, want safe", d.ConsensusPrediction)
	}
	if d.ConsensusConfidence != 0.5455 {
		t.Errorf("ConsensusConfidence = %v, want 0.5455 rounded to 4 decimals", d.ConsensusConfidence)
	}
	if d.CrisisLevel != triage.LevelNone {
		t.Errorf("CrisisLevel = %v, want none", d.CrisisLevel)
	}
	if !d.RequiresStaffReview || d.ReviewRule != triage.RuleDisagreement {
		t.Errorf("review = %v via %q, want required via disagreement", d.RequiresStaffReview, d.ReviewRule)
	}
}

func TestAssessVotesRejectsInvalid(t *testing.T) {
	e, err := New([]Classifier{mockSlot("m1", adapter.NewMockAdapter("m1"))}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.AssessVotes([]vote.ModelVote{
		{ModelID: "m1", Labels: []vote.LabelScore{{Label: "crisis", Score: 1.7}}},
	}); err == nil {
		t.Error("AssessVotes() error = nil for out-of-range score, want error")
	}
}

func TestAssessWithLearner(t *testing.T) {
	store, err := learning.NewFileStore(filepath.Join(t.TempDir(), "learning.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	learner, err := learning.NewController(store, learning.DefaultParameters())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	msg := "quiet cry for help"
	mk := func() *Engine {
		e, err := New([]Classifier{
			mockSlot("m1", adapter.NewMockAdapter("m1").Respond(msg, crisisLabels(0.5))),
		}, nil, WithMode("consensus"), WithLearner(learner))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return e
	}

	e := mk()
	d, err := e.Assess(context.Background(), msg)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if d.CrisisLevel != triage.LevelMedium {
		t.Fatalf("CrisisLevel before feedback = %v, want medium", d.CrisisLevel)
	}

	// A missed high-severity crisis raises sensitivity 1.0 -> 1.1, which
	// lifts the same raw 0.5 score to 0.55 and over the high threshold.
	res, err := e.Feedback(learning.Feedback{
		Type:        learning.FalseNegative,
		Severity:    1.0,
		CrisisLevel: triage.LevelHigh,
	})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if !res.Applied {
		t.Fatalf("Feedback() not applied: %q", res.Reason)
	}

	d, err = e.Assess(context.Background(), msg)
	if err != nil {
		t.Fatalf("Assess() after feedback error = %v", err)
	}
	if d.ConsensusConfidence != 0.55 {
		t.Errorf("ConsensusConfidence = %v, want calibrated 0.55", d.ConsensusConfidence)
	}
	if d.CrisisLevel != triage.LevelHigh {
		t.Errorf("CrisisLevel after feedback = %v, want high", d.CrisisLevel)
	}
}

func TestFeedbackWithoutLearner(t *testing.T) {
	e, err := New([]Classifier{mockSlot("m1", adapter.NewMockAdapter("m1"))}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := e.Feedback(learning.Feedback{Type: learning.FalseNegative, Severity: 0.5}); err == nil {
		t.Error("Feedback() error = nil without a learning controller, want error")
	}
}

func TestAssessCustomThresholds(t *testing.T) {
	ts, err := thresholds.Load([]byte(`
modes:
  consensus:
    crisis_to_high: 0.95
`), nil)
	if err != nil {
		t.Fatalf("thresholds.Load() error = %v", err)
	}

	msg := "message"
	e, err := New([]Classifier{
		mockSlot("m1", adapter.NewMockAdapter("m1").Respond(msg, crisisLabels(0.9))),
	}, ts, WithMode("consensus"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d, err := e.Assess(context.Background(), msg)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if d.CrisisLevel != triage.LevelMedium {
		t.Errorf("CrisisLevel = %v, want medium under the raised high threshold", d.CrisisLevel)
	}
}
