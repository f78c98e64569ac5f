package vote

import (
	"fmt"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		vote    ModelVote
		wantErr bool
	}{
		{
			name: "valid single label",
			vote: ModelVote{ModelID: "m1", Labels: []LabelScore{{Label: "crisis", Score: 0.9}}},
		},
		{
			name: "valid descending labels",
			vote: ModelVote{ModelID: "m1", Labels: []LabelScore{
				{Label: "crisis", Score: 0.9},
				{Label: "negative", Score: 0.4},
			}},
		},
		{
			name: "valid failure marker",
			vote: Failure("m1", fmt.Errorf("timeout")),
		},
		{
			name:    "missing model id",
			vote:    ModelVote{Labels: []LabelScore{{Label: "safe", Score: 0.5}}},
			wantErr: true,
		},
		{
			name:    "empty but not failed",
			vote:    ModelVote{ModelID: "m1"},
			wantErr: true,
		},
		{
			name:    "failed with labels",
			vote:    ModelVote{ModelID: "m1", Failed: true, Labels: []LabelScore{{Label: "safe", Score: 0.5}}},
			wantErr: true,
		},
		{
			name:    "score above one",
			vote:    ModelVote{ModelID: "m1", Labels: []LabelScore{{Label: "crisis", Score: 1.2}}},
			wantErr: true,
		},
		{
			name:    "negative score",
			vote:    ModelVote{ModelID: "m1", Labels: []LabelScore{{Label: "crisis", Score: -0.1}}},
			wantErr: true,
		},
		{
			name: "not sorted descending",
			vote: ModelVote{ModelID: "m1", Labels: []LabelScore{
				{Label: "safe", Score: 0.3},
				{Label: "crisis", Score: 0.9},
			}},
			wantErr: true,
		},
		{
			name:    "empty label",
			vote:    ModelVote{ModelID: "m1", Labels: []LabelScore{{Label: "", Score: 0.5}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.vote)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetValid(t *testing.T) {
	set, err := NewSet([]ModelVote{
		{ModelID: "m1", Labels: []LabelScore{{Label: "crisis", Score: 0.9}}},
		Failure("m2", fmt.Errorf("unavailable")),
		{ModelID: "m3", Labels: []LabelScore{{Label: "safe", Score: 0.6}}},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
	valid := set.Valid()
	if len(valid) != 2 {
		t.Fatalf("Valid() returned %d votes, want 2", len(valid))
	}
	if valid[0].ModelID != "m1" || valid[1].ModelID != "m3" {
		t.Errorf("Valid() order = %s, %s; want m1, m3", valid[0].ModelID, valid[1].ModelID)
	}
}

func TestTop(t *testing.T) {
	v := ModelVote{ModelID: "m1", Labels: []LabelScore{
		{Label: "crisis", Score: 0.8},
		{Label: "negative", Score: 0.2},
	}}
	top, ok := v.Top()
	if !ok {
		t.Fatal("Top() ok = false, want true")
	}
	if top.Label != "crisis" || top.Score != 0.8 {
		t.Errorf("Top() = %v, want crisis/0.8", top)
	}

	if _, ok := Failure("m2", nil).Top(); ok {
		t.Error("Top() on failed vote ok = true, want false")
	}
}
