package adapter

import (
	"context"
	"fmt"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// MockAdapter returns deterministic label lists for local runs and tests.
type MockAdapter struct {
	name      string
	responses map[string][]vote.LabelScore
	fallback  []vote.LabelScore
	err       error
}

// NewMockAdapter creates a mock adapter with a neutral default response.
func NewMockAdapter(name string) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{
		name:      name,
		responses: make(map[string][]vote.LabelScore),
		fallback: []vote.LabelScore{
			{Label: "neutral", Score: 0.8},
			{Label: "safe", Score: 0.2},
		},
	}
}

// Respond registers a canned response for an exact message.
func (a *MockAdapter) Respond(message string, labels []vote.LabelScore) *MockAdapter {
	a.responses[message] = labels
	return a
}

// Fallback sets the response used when no canned message matches.
func (a *MockAdapter) Fallback(labels []vote.LabelScore) *MockAdapter {
	a.fallback = labels
	return a
}

// Fail makes every Classify call return err.
func (a *MockAdapter) Fail(err error) *MockAdapter {
	a.err = err
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Classify returns the canned labels for the message.
func (a *MockAdapter) Classify(_ context.Context, _ string, message string) ([]vote.LabelScore, error) {
	if a.err != nil {
		return nil, &ClassifierError{Adapter: a.name, Err: a.err}
	}
	if labels, ok := a.responses[message]; ok {
		return labels, nil
	}
	if len(a.fallback) == 0 {
		return nil, &ClassifierError{Adapter: a.name, Err: fmt.Errorf("no canned response for message")}
	}
	return a.fallback, nil
}
