package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// LocalAdapter implements the Adapter interface against any
// OpenAI-compatible chat endpoint, typically a self-hosted classifier.
type LocalAdapter struct {
	baseURL    string
	apiKey     string
	models     []string
	httpClient *http.Client
}

type localRequest struct {
	Model       string         `json:"model"`
	Messages    []localMessage `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewLocalAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewLocalAdapter(baseURL, apiKey string, models []string) (*LocalAdapter, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local classifier base URL is required")
	}
	if len(models) == 0 {
		models = []string{"default"}
	}
	return &LocalAdapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		models:     models,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *LocalAdapter) Name() string {
	return "local"
}

// Models returns the configured model list.
func (a *LocalAdapter) Models() []string {
	return a.models
}

// Classify sends the classification prompt to the endpoint and parses the
// label list.
func (a *LocalAdapter) Classify(ctx context.Context, model string, message string) ([]vote.LabelScore, error) {
	reqBody := localRequest{
		Model: model,
		Messages: []localMessage{
			{Role: "user", Content: buildClassifierPrompt(message)},
		},
		MaxTokens: 1024,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}

	var parsed localResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Status: resp.StatusCode, Err: err}
	}
	if parsed.Error != nil {
		return nil, &ClassifierError{
			Adapter: a.Name(),
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s (type: %s)", parsed.Error.Message, parsed.Error.Type),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ClassifierError{
			Adapter: a.Name(),
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("endpoint returned status %d", resp.StatusCode),
		}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ClassifierError{Adapter: a.Name(), Err: fmt.Errorf("no choices returned")}
	}

	labels, err := parseLabelScores(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}
	return labels, nil
}
