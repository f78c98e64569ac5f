package adapter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// classifierLabels is the label vocabulary the LLM backends are asked to
// score against.
var classifierLabels = []string{
	"crisis",
	"mild_crisis",
	"negative",
	"mild_negative",
	"neutral",
	"positive",
	"safe",
	"unknown",
}

// buildClassifierPrompt asks a model to score a message against the label
// vocabulary, returning only strict JSON.
func buildClassifierPrompt(message string) string {
	var sb strings.Builder
	sb.WriteString("You are a crisis-severity classifier for a moderated community.\n")
	sb.WriteString("Score the message against each label below.\n")
	sb.WriteString("Return ONLY a JSON array sorted by descending score:\n")
	sb.WriteString(`[{"label":"...","score":0.0}, ...]` + "\n\n")
	sb.WriteString("Labels: ")
	sb.WriteString(strings.Join(classifierLabels, ", "))
	sb.WriteString("\n\nMessage:\n")
	sb.WriteString(message)
	return sb.String()
}

// parseLabelScores parses a model's JSON label list, tolerating markdown
// code fences around the payload. Scores outside [0,1] are an error, not
// something to clamp silently.
func parseLabelScores(content string) ([]vote.LabelScore, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var labels []vote.LabelScore
	if err := json.Unmarshal([]byte(content), &labels); err != nil {
		return nil, fmt.Errorf("invalid classifier payload: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier returned no labels")
	}
	for _, ls := range labels {
		if ls.Label == "" {
			return nil, fmt.Errorf("classifier returned an empty label")
		}
		if ls.Score < 0 || ls.Score > 1 {
			return nil, fmt.Errorf("classifier score %.4f for %q out of [0,1]", ls.Score, ls.Label)
		}
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Score > labels[j].Score
	})
	return labels, nil
}
