package types

import (
	"reflect"
	"testing"
	"time"
)

func TestNewSentimentSummary(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	results := []SentimentResult{
		{SpeakerID: "A", SentimentScore: 0.5},
		{SpeakerID: "B", SentimentScore: -0.5},
		{SpeakerID: "A", SentimentScore: 1},
		{SpeakerID: "a", SentimentScore: 0.2},
	}

	got := NewSentimentSummary(results, at)
	if got.OverallSentiment != 0.3 {
		t.Errorf("OverallSentiment = %v, want 0.3", got.OverallSentiment)
	}
	want := map[string]float64{"A": 0.75, "B": -0.5, "a": 0.2}
	if !reflect.DeepEqual(got.SpeakerSentiments, want) {
		t.Errorf("SpeakerSentiments = %v, want %v", got.SpeakerSentiments, want)
	}
	if !got.Timestamp.Equal(at) || len(got.SentimentTimeline) != 4 {
		t.Errorf("summary = %+v", got)
	}
}

func TestNewSentimentSummaryEmpty(t *testing.T) {
	got := NewSentimentSummary(nil, time.Time{})
	if got.OverallSentiment != 0 || got.SpeakerSentiments == nil || len(got.SpeakerSentiments) != 0 {
		t.Errorf("empty summary = %+v", got)
	}
}
