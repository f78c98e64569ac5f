package learning

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/zen-systems/crisisgate/pkg/triage"
)

// FeedbackType distinguishes the two kinds of human feedback.
type FeedbackType string

const (
	// FalsePositive means the engine over-flagged; sensitivity goes down.
	FalsePositive FeedbackType = "false_positive"
	// FalseNegative means the engine missed a crisis; sensitivity goes up.
	FalseNegative FeedbackType = "false_negative"
)

// ParseFeedbackType rejects unknown feedback kinds at the boundary.
func ParseFeedbackType(raw string) (FeedbackType, error) {
	switch FeedbackType(strings.ToLower(strings.TrimSpace(raw))) {
	case FalsePositive:
		return FalsePositive, nil
	case FalseNegative:
		return FalseNegative, nil
	}
	return "", fmt.Errorf("unknown feedback type %q", raw)
}

// Feedback is one human review outcome fed back into the controller.
type Feedback struct {
	Type        FeedbackType `json:"feedback_type"`
	Severity    float64      `json:"severity_score"`
	CrisisLevel triage.Level `json:"crisis_level"`
	Message     string       `json:"message,omitempty"`
}

// Result reports what an adjustment attempt did. A rejected or negligible
// attempt leaves the state untouched.
type Result struct {
	Applied        bool    `json:"applied"`
	Reason         string  `json:"reason,omitempty"`
	OldSensitivity float64 `json:"old_sensitivity"`
	NewSensitivity float64 `json:"new_sensitivity"`
	Delta          float64 `json:"delta"`
	PhraseKey      string  `json:"phrase_key,omitempty"`
	PhraseDelta    float64 `json:"phrase_delta,omitempty"`
}

// Rejection reasons.
const (
	ReasonLimitReached = "limit reached"
	ReasonNegligible   = "negligible adjustment"
	ReasonPersistence  = "persistence failure"
)

// Controller recalibrates global sensitivity and per-phrase deltas from
// human feedback, within hard safety bounds. All read-modify-write
// sequences run inside one critical section, and state is persisted
// synchronously before an adjustment is committed in memory.
type Controller struct {
	mu     sync.Mutex
	params Parameters
	store  Store
	state  State
	now    func() time.Time
	debug  bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock overrides the time source. Used by tests to cross UTC date
// boundaries deterministically.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithControllerDebug enables debug logging.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) { c.debug = debug }
}

// NewController loads the persisted state once and validates parameters.
// A load or parameter failure is surfaced here; the controller never
// starts with invented bounds.
func NewController(store Store, params Parameters, opts ...ControllerOption) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("learning parameters: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("learning store is required")
	}

	c := &Controller{
		params: params,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	state, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !found {
		state = NewState()
	}
	c.state = state
	return c, nil
}

// severityMultiplier scales the adjustment by the reviewed crisis level.
func severityMultiplier(level triage.Level) float64 {
	switch level {
	case triage.LevelHigh:
		return 2.0
	case triage.LevelMedium:
		return 1.5
	case triage.LevelLow:
		return 1.0
	default:
		return 0.5
	}
}

// Apply runs one feedback event through the bounded adjustment pipeline:
// daily quota, sensitivity clamp, drift cap, epsilon no-op, then a
// synchronous persist. On persistence failure the in-memory state is
// left unchanged and the error is surfaced.
func (c *Controller) Apply(fb Feedback) (Result, error) {
	if fb.Type != FalsePositive && fb.Type != FalseNegative {
		return Result{}, fmt.Errorf("unknown feedback type %q", fb.Type)
	}
	if fb.Severity < 0 || fb.Severity > 1 {
		return Result{}, fmt.Errorf("severity score %.4f out of [0,1]", fb.Severity)
	}

	direction := 1.0
	if fb.Type == FalsePositive {
		direction = -1.0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	today := now.Format("2006-01-02")
	if c.state.LastResetDate != today {
		c.state.DailyAdjustmentCount = 0
		c.state.LastResetDate = today
	}

	old := c.state.GlobalSensitivity
	if c.state.DailyAdjustmentCount >= c.params.MaxAdjustmentsPerDay {
		return Result{Reason: ReasonLimitReached, OldSensitivity: old, NewSensitivity: old}, nil
	}

	adjustment := c.params.LearningRate * fb.Severity * severityMultiplier(fb.CrisisLevel) * direction

	next := c.bound(old+adjustment, old, c.params.MinGlobalSensitivity, c.params.MaxGlobalSensitivity)
	delta := next - old
	if math.Abs(delta) < c.params.Epsilon {
		return Result{Reason: ReasonNegligible, OldSensitivity: old, NewSensitivity: old}, nil
	}

	ev := AdjustmentEvent{
		Timestamp:    now,
		FeedbackType: string(fb.Type),
		OldThreshold: old,
		NewThreshold: next,
		Delta:        delta,
		Severity:     fb.Severity,
		CrisisLevel:  fb.CrisisLevel.String(),
	}

	candidate := c.state.Clone()
	candidate.GlobalSensitivity = next
	candidate.DailyAdjustmentCount++

	ring := NewRing(c.params.HistoryCap, candidate.History)
	ring.Append(ev)
	candidate.History = ring.Items()

	result := Result{
		Applied:        true,
		OldSensitivity: old,
		NewSensitivity: next,
		Delta:          delta,
	}

	if key := PhraseKey(fb.Message, c.params.PhrasePrefixLen); key != "" {
		oldPhrase := candidate.PhraseAdjustments[key]
		bound := c.params.MaxConfidenceAdjustment
		newPhrase := c.bound(oldPhrase+adjustment, oldPhrase, -bound, bound)
		if math.Abs(newPhrase-oldPhrase) >= c.params.Epsilon {
			candidate.PhraseAdjustments[key] = newPhrase
			result.PhraseKey = key
			result.PhraseDelta = newPhrase - oldPhrase
		}
	}

	if err := c.store.Save(candidate, []AdjustmentEvent{ev}); err != nil {
		if c.debug {
			log.Printf("[learning] persist failed, adjustment blocked: %v", err)
		}
		return Result{Reason: ReasonPersistence, OldSensitivity: old, NewSensitivity: old}, err
	}

	c.state = candidate
	if c.debug {
		log.Printf("[learning] %s adjusted sensitivity %.4f -> %.4f (delta %+.4f)",
			fb.Type, old, next, delta)
	}
	return result, nil
}

// bound clamps candidate into [min, max], then re-clamps to the drift
// window around current, then re-applies the outer bounds.
func (c *Controller) bound(candidate, current, min, max float64) float64 {
	v := clamp(candidate, min, max)
	if math.Abs(v-current) > c.params.MaxDrift {
		if v > current {
			v = current + c.params.MaxDrift
		} else {
			v = current - c.params.MaxDrift
		}
		v = clamp(v, min, max)
	}
	return v
}

// AdjustScore applies the learned calibration to a raw classifier score:
// raw x global sensitivity plus any matching phrase delta, clamped to
// [0,1].
func (c *Controller) AdjustScore(raw float64, message string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	adjusted := raw * c.state.GlobalSensitivity
	if key := PhraseKey(message, c.params.PhrasePrefixLen); key != "" {
		if delta, ok := c.state.PhraseAdjustments[key]; ok {
			adjusted += delta
		}
	}
	return clamp(adjusted, 0, 1)
}

// Sensitivity returns the current global sensitivity.
func (c *Controller) Sensitivity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.GlobalSensitivity
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// PhraseKey derives the phrase-adjustment key: the fixed-length,
// lower-cased prefix of the feedback message.
func PhraseKey(message string, prefixLen int) string {
	trimmed := strings.ToLower(strings.TrimSpace(message))
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return string(runes)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
