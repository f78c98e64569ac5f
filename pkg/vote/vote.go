package vote

import "fmt"

// LabelScore is one ranked (label, score) pair from a classifier.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ModelVote is a single classifier's output for one message.
//
// Either Labels is non-empty and sorted by descending score, or Failed is
// set with the failure reason in Err. An empty-but-not-failed vote is
// rejected at the boundary so downstream code never has to guess.
type ModelVote struct {
	ModelID string       `json:"model_id"`
	Labels  []LabelScore `json:"labels,omitempty"`
	Failed  bool         `json:"failed,omitempty"`
	Err     string       `json:"error,omitempty"`
}

// Failure creates a failure-marked vote for a model.
func Failure(modelID string, err error) ModelVote {
	v := ModelVote{ModelID: modelID, Failed: true}
	if err != nil {
		v.Err = err.Error()
	}
	return v
}

// Valid reports whether the vote carries usable labels.
func (v ModelVote) Valid() bool {
	return !v.Failed && len(v.Labels) > 0
}

// Top returns the highest-ranked label, if any.
func (v ModelVote) Top() (LabelScore, bool) {
	if !v.Valid() {
		return LabelScore{}, false
	}
	return v.Labels[0], true
}

// Validate checks the structural invariants of a vote.
func Validate(v ModelVote) error {
	if v.ModelID == "" {
		return fmt.Errorf("vote missing model_id")
	}
	if v.Failed {
		if len(v.Labels) > 0 {
			return fmt.Errorf("model %s: failed vote must not carry labels", v.ModelID)
		}
		return nil
	}
	if len(v.Labels) == 0 {
		return fmt.Errorf("model %s: vote has neither labels nor a failure marker", v.ModelID)
	}
	for i, ls := range v.Labels {
		if ls.Label == "" {
			return fmt.Errorf("model %s: empty label at rank %d", v.ModelID, i)
		}
		if ls.Score < 0 || ls.Score > 1 {
			return fmt.Errorf("model %s: score %.4f for %q out of [0,1]", v.ModelID, ls.Score, ls.Label)
		}
		if i > 0 && ls.Score > v.Labels[i-1].Score {
			return fmt.Errorf("model %s: labels not sorted by descending score", v.ModelID)
		}
	}
	return nil
}

// Set is the joined per-request collection of model votes.
type Set struct {
	Votes []ModelVote
}

// NewSet builds a vote set, validating each vote.
func NewSet(votes []ModelVote) (Set, error) {
	for _, v := range votes {
		if err := Validate(v); err != nil {
			return Set{}, err
		}
	}
	return Set{Votes: votes}, nil
}

// Valid returns the non-failed votes in input order.
func (s Set) Valid() []ModelVote {
	var out []ModelVote
	for _, v := range s.Votes {
		if v.Valid() {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the total number of votes, failures included.
func (s Set) Len() int {
	return len(s.Votes)
}
