package ensemble

import (
	"sort"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// majorityReviewAgreement is the agreement level below which a majority
// result suggests staff review.
const majorityReviewAgreement = 2.0 / 3.0

// Build combines per-model votes into one consensus result. Weights are
// keyed by model ID and default to 1.0; they only matter for the weighted
// strategy. Build is pure: identical inputs always produce an identical
// result.
func Build(votes vote.Set, weights map[string]float64, strategy Strategy) ConsensusResult {
	valid := votes.Valid()
	if len(valid) == 0 {
		return ConsensusResult{
			Prediction:    PredictionUnknown,
			Confidence:    0,
			Method:        strategy,
			SuggestReview: true,
			RawVotes:      votes.Votes,
		}
	}

	var result ConsensusResult
	switch strategy {
	case StrategyWeighted:
		result = buildWeighted(valid, weights)
	case StrategyUnanimous:
		result = buildUnanimous(valid)
	default:
		result = buildMajority(valid, votes.Len())
	}
	result.Method = strategy
	result.RawVotes = votes.Votes
	return result
}

// buildMajority tallies top-1 labels. Ties break toward the highest
// summed score, then lexically smallest label, so ordering is
// deterministic.
func buildMajority(valid []vote.ModelVote, totalModels int) ConsensusResult {
	counts := make(map[string]int)
	scoreSums := make(map[string]float64)
	for _, v := range valid {
		top, _ := v.Top()
		counts[top.Label]++
		scoreSums[top.Label] += top.Score
	}

	labels := sortedLabels(counts)
	winner := labels[0]
	for _, label := range labels[1:] {
		switch {
		case counts[label] > counts[winner]:
			winner = label
		case counts[label] == counts[winner] && scoreSums[label] > scoreSums[winner]:
			winner = label
		}
	}

	confidence := scoreSums[winner] / float64(counts[winner])
	agreement := float64(counts[winner]) / float64(totalModels)

	return ConsensusResult{
		Prediction:     winner,
		Confidence:     confidence,
		AgreementLevel: agreement,
		SuggestReview:  agreement < majorityReviewAgreement,
	}
}

// buildWeighted accumulates weight x score per top-1 label.
func buildWeighted(valid []vote.ModelVote, weights map[string]float64) ConsensusResult {
	buckets := make(map[string]float64)
	var totalWeightUsed float64
	for _, v := range valid {
		top, _ := v.Top()
		w := 1.0
		if weights != nil {
			if mw, ok := weights[v.ModelID]; ok {
				w = mw
			}
		}
		buckets[top.Label] += w * top.Score
		totalWeightUsed += w * top.Score
	}

	labels := sortedLabels(buckets)
	winner := labels[0]
	for _, label := range labels[1:] {
		if buckets[label] > buckets[winner] {
			winner = label
		}
	}

	var bucketSum float64
	for _, mass := range buckets {
		bucketSum += mass
	}

	var confidence, agreement float64
	if totalWeightUsed > 0 {
		confidence = buckets[winner] / totalWeightUsed
	}
	if bucketSum > 0 {
		agreement = buckets[winner] / bucketSum
	}

	return ConsensusResult{
		Prediction:     winner,
		Confidence:     confidence,
		AgreementLevel: agreement,
		SuggestReview:  confidence < 0.5,
	}
}

// buildUnanimous requires every valid model's top-1 label to match.
func buildUnanimous(valid []vote.ModelVote) ConsensusResult {
	first, _ := valid[0].Top()
	var scoreSum float64
	for _, v := range valid {
		top, _ := v.Top()
		if top.Label != first.Label {
			return ConsensusResult{
				Prediction:     PredictionDisagreement,
				Confidence:     0,
				AgreementLevel: 0,
				SuggestReview:  true,
			}
		}
		scoreSum += top.Score
	}

	return ConsensusResult{
		Prediction:     first.Label,
		Confidence:     scoreSum / float64(len(valid)),
		AgreementLevel: 1.0,
	}
}

// sortedLabels returns map keys in lexical order for deterministic
// iteration.
func sortedLabels[V any](m map[string]V) []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
