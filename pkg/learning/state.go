package learning

import "time"

// SchemaLearningStateV1 identifies the persisted learning-state document.
// Loaders ignore unknown fields, so the document is forward-compatible.
const SchemaLearningStateV1 = "crisisgate.learning.v1"

// AdjustmentEvent records one accepted sensitivity adjustment. The
// history is append-only and capped by a ring buffer.
type AdjustmentEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	FeedbackType string    `json:"feedback_type"`
	OldThreshold float64   `json:"old_threshold"`
	NewThreshold float64   `json:"new_threshold"`
	Delta        float64   `json:"delta"`
	Severity     float64   `json:"severity"`
	CrisisLevel  string    `json:"crisis_level"`
}

// State is the durable learning state. It is mutated only by the
// Controller and rewritten after every accepted adjustment.
type State struct {
	Schema               string             `json:"schema"`
	GlobalSensitivity    float64            `json:"global_sensitivity"`
	PhraseAdjustments    map[string]float64 `json:"phrase_adjustments"`
	History              []AdjustmentEvent  `json:"adjustment_history"`
	DailyAdjustmentCount int                `json:"daily_adjustment_count"`
	LastResetDate        string             `json:"last_reset_date"`
}

// NewState returns a fresh state with neutral sensitivity.
func NewState() State {
	return State{
		Schema:            SchemaLearningStateV1,
		GlobalSensitivity: 1.0,
		PhraseAdjustments: make(map[string]float64),
	}
}

// Clone deep-copies the state so callers can build a candidate update
// without touching the committed one.
func (s State) Clone() State {
	out := s
	out.PhraseAdjustments = make(map[string]float64, len(s.PhraseAdjustments))
	for k, v := range s.PhraseAdjustments {
		out.PhraseAdjustments[k] = v
	}
	out.History = make([]AdjustmentEvent, len(s.History))
	copy(out.History, s.History)
	return out
}

// normalize fills in defaults for documents written by older versions.
func (s *State) normalize() {
	if s.Schema == "" {
		s.Schema = SchemaLearningStateV1
	}
	if s.GlobalSensitivity == 0 {
		s.GlobalSensitivity = 1.0
	}
	if s.PhraseAdjustments == nil {
		s.PhraseAdjustments = make(map[string]float64)
	}
}
