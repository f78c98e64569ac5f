package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/zen-systems/crisisgate/pkg/vote"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient()
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-5.2-instant",
		"gpt-5.2-thinking",
	}
}

// Classify asks an OpenAI model to score the message and parses the
// label list.
func (a *OpenAIAdapter) Classify(ctx context.Context, model string, message string) ([]vote.LabelScore, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildClassifierPrompt(message)),
		},
		MaxCompletionTokens: openai.Int(1024),
	})
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &ClassifierError{Adapter: a.Name(), Err: fmt.Errorf("no choices returned")}
	}

	labels, err := parseLabelScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &ClassifierError{Adapter: a.Name(), Err: err}
	}
	return labels, nil
}
