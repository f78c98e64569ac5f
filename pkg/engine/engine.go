package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/zen-systems/crisisgate/pkg/adapter"
	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/learning"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
	"github.com/zen-systems/crisisgate/pkg/triage"
	"github.com/zen-systems/crisisgate/pkg/vote"
)

// Classifier binds one model slot in the ensemble to an adapter.
type Classifier struct {
	ID      string
	Adapter adapter.Adapter
	Model   string
	Weight  float64
}

// Engine runs the full per-message decision: classify concurrently, apply
// learned calibration, build consensus, detect gaps, map severity, and
// decide on staff review. Once votes are in, the computation is
// deterministic and performs no I/O.
type Engine struct {
	classifiers []Classifier
	store       *thresholds.Store
	learner     *learning.Controller
	mode        string
	strategy    ensemble.Strategy
	debug       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLearner attaches the adaptive learning controller. Without one, raw
// scores pass through unadjusted.
func WithLearner(l *learning.Controller) Option {
	return func(e *Engine) { e.learner = l }
}

// WithMode selects the ensemble mode, which picks both the threshold set
// and the default voting strategy.
func WithMode(mode string) Option {
	return func(e *Engine) { e.mode = mode }
}

// WithStrategy overrides the voting strategy derived from the mode.
func WithStrategy(s ensemble.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// New creates an engine over the given classifier slots.
func New(classifiers []Classifier, store *thresholds.Store, opts ...Option) (*Engine, error) {
	if len(classifiers) == 0 {
		return nil, fmt.Errorf("at least one classifier is required")
	}
	for _, c := range classifiers {
		if c.ID == "" || c.Adapter == nil {
			return nil, fmt.Errorf("classifier slots need an ID and an adapter")
		}
	}
	if store == nil {
		store = thresholds.New()
	}

	e := &Engine{
		classifiers: classifiers,
		store:       store,
		mode:        "consensus",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategy == "" {
		e.strategy = strategyForMode(e.mode)
	}
	return e, nil
}

// strategyForMode maps an ensemble mode to its default voting strategy.
func strategyForMode(mode string) ensemble.Strategy {
	switch mode {
	case "majority":
		return ensemble.StrategyMajority
	case "weighted":
		return ensemble.StrategyWeighted
	default:
		return ensemble.StrategyUnanimous
	}
}

// Assess classifies the message on every configured backend concurrently,
// joins the votes, and runs the decision pipeline.
func (e *Engine) Assess(ctx context.Context, message string) (*Decision, error) {
	votes := make([]vote.ModelVote, len(e.classifiers))

	var wg sync.WaitGroup
	for i, c := range e.classifiers {
		wg.Add(1)
		go func(i int, c Classifier) {
			defer wg.Done()
			labels, err := c.Adapter.Classify(ctx, c.Model, message)
			if err != nil {
				if e.debug {
					log.Printf("[engine] classifier %s failed: %v", c.ID, err)
				}
				votes[i] = vote.Failure(c.ID, err)
				return
			}
			votes[i] = vote.ModelVote{ModelID: c.ID, Labels: labels}
		}(i, c)
	}
	wg.Wait()

	if e.learner != nil {
		votes = e.applyCalibration(votes, message)
	}
	return e.AssessVotes(votes)
}

// applyCalibration rewrites every score through the learning controller.
// The adjustment is monotone per vote, so label ordering is preserved.
func (e *Engine) applyCalibration(votes []vote.ModelVote, message string) []vote.ModelVote {
	out := make([]vote.ModelVote, len(votes))
	for i, v := range votes {
		if !v.Valid() {
			out[i] = v
			continue
		}
		adjusted := vote.ModelVote{ModelID: v.ModelID, Labels: make([]vote.LabelScore, len(v.Labels))}
		for j, ls := range v.Labels {
			adjusted.Labels[j] = vote.LabelScore{
				Label: ls.Label,
				Score: e.learner.AdjustScore(ls.Score, message),
			}
		}
		out[i] = adjusted
	}
	return out
}

// AssessVotes runs the decision pipeline over already-joined votes. This
// is the offline entry point used for captured vote sets and tests.
func (e *Engine) AssessVotes(rawVotes []vote.ModelVote) (*Decision, error) {
	set, err := vote.NewSet(rawVotes)
	if err != nil {
		return nil, err
	}

	ts := e.store.Set(e.mode)
	policy := e.store.Policy()

	consensus := ensemble.Build(set, e.weights(), e.strategy)
	gap := ensemble.DetectGap(set, ts.GapThreshold)
	level := triage.MapLevel(consensus, ts)
	review := triage.DecideReview(level, consensus.Confidence, gap, policy)

	d := &Decision{
		Schema:              SchemaDecisionV1,
		CrisisLevel:         level,
		ConsensusPrediction: consensus.Prediction,
		ConsensusConfidence: round4(consensus.Confidence),
		ConsensusMethod:     string(consensus.Method),
		AgreementLevel:      round4(consensus.AgreementLevel),
		ConfidenceBand:      triage.ConfidenceBand(consensus.Confidence, ts),
		Mode:                e.mode,
		GapDetected:         gap.GapDetected,
		Gap:                 roundGap(gap),
		RequiresStaffReview: review.Required,
		ReviewRule:          review.Rule,
		ReviewReason:        review.Reason,
		PerModelDiagnostics: e.diagnostics(rawVotes),
	}

	// The builder's own review suggestion (thin majorities, weak weighted
	// confidence, zero valid votes) still forces review when no policy
	// rule fired. This engine degrades toward review, never past it.
	if !d.RequiresStaffReview && consensus.SuggestReview {
		d.RequiresStaffReview = true
		d.ReviewRule = "consensus_suggestion"
		d.ReviewReason = "consensus builder flagged this result"
	}

	if len(set.Valid()) == 0 {
		d.Degraded = true
		d.DegradedReason = "no valid classifier votes"
	}

	if e.debug {
		log.Printf("[engine] %s -> %s (confidence %.4f, review=%t)",
			consensus.Prediction, level, consensus.Confidence, d.RequiresStaffReview)
	}
	return d, nil
}

// Feedback forwards a human review outcome to the learning controller.
func (e *Engine) Feedback(fb learning.Feedback) (learning.Result, error) {
	if e.learner == nil {
		return learning.Result{}, fmt.Errorf("no learning controller configured")
	}
	return e.learner.Apply(fb)
}

// Mode returns the active ensemble mode.
func (e *Engine) Mode() string {
	return e.mode
}

// Strategy returns the active voting strategy.
func (e *Engine) Strategy() ensemble.Strategy {
	return e.strategy
}

func (e *Engine) weights() map[string]float64 {
	weights := make(map[string]float64, len(e.classifiers))
	for _, c := range e.classifiers {
		w := c.Weight
		if w <= 0 {
			w = 1.0
		}
		weights[c.ID] = w
	}
	return weights
}

func (e *Engine) diagnostics(votes []vote.ModelVote) []ModelDiagnostic {
	byID := make(map[string]Classifier, len(e.classifiers))
	for _, c := range e.classifiers {
		byID[c.ID] = c
	}

	diags := make([]ModelDiagnostic, 0, len(votes))
	for _, v := range votes {
		diag := ModelDiagnostic{ModelID: v.ModelID}
		if c, ok := byID[v.ModelID]; ok {
			diag.Adapter = c.Adapter.Name()
			diag.Model = c.Model
		}
		if v.Failed {
			diag.Failed = true
			diag.Error = v.Err
		} else if top, ok := v.Top(); ok {
			diag.TopLabel = top.Label
			diag.Score = round4(top.Score)
		}
		diags = append(diags, diag)
	}
	return diags
}
