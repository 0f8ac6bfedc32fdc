package types

import "time"

// NewSentimentSummary aggregates results into their overall mean and
// per-speaker means, keyed by the exact speaker label. No results give a zero
// summary with an empty speaker map.
func NewSentimentSummary(results []SentimentResult, at time.Time) *SentimentSummary {
	summary := &SentimentSummary{
		SentimentTimeline: results,
		SpeakerSentiments: make(map[string]float64),
		Timestamp:         at,
	}
	if len(results) == 0 {
		return summary
	}

	var total float64
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		total += r.SentimentScore
		sums[r.SpeakerID] += r.SentimentScore
		counts[r.SpeakerID]++
	}
	for speaker, sum := range sums {
		summary.SpeakerSentiments[speaker] = sum / float64(counts[speaker])
	}
	summary.OverallSentiment = total / float64(len(results))
	return summary
}
