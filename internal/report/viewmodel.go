package report

import (
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// DiscussionData is the input of a report. Topics and Transcription are
// required; everything else may be nil.
type DiscussionData struct {
	Recording     *types.Recording
	Topics        []types.Topic
	Hierarchy     types.Hierarchy
	Transcription []types.TranscriptionSegment
	Sentiment     *types.SentimentSummary
}

type Timeline struct {
	Labels []string  `json:"labels"`
	Start  []float64 `json:"start"`
	End    []float64 `json:"end"`
}

type SpeakerStats struct {
	Speakers  []string  `json:"speakers"`
	Durations []float64 `json:"durations"`
}

type HierarchyNode struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

type HierarchyLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// HierarchyGraph lists one node per topic. Links are not populated yet.
type HierarchyGraph struct {
	Nodes []HierarchyNode `json:"nodes"`
	Links []HierarchyLink `json:"links"`
}

type SentimentPoint struct {
	Timestamp      float64 `json:"timestamp"`
	SentimentScore float64 `json:"sentiment_score"`
	SpeakerID      string  `json:"speaker_id"`
	Text           string  `json:"text"`
}

type SentimentSeries struct {
	OverallSentiment  float64            `json:"overall_sentiment"`
	Timeline          []SentimentPoint   `json:"timeline"`
	SpeakerSentiments map[string]float64 `json:"speaker_sentiments"`
}

// VizData is embedded in the report for client-side charts.
type VizData struct {
	Timeline  Timeline        `json:"timeline"`
	Speakers  SpeakerStats    `json:"speakers"`
	Hierarchy HierarchyGraph  `json:"hierarchy"`
	Sentiment SentimentSeries `json:"sentiment"`
}

// defaultImportance is the node value for topics without a score.
const defaultImportance = 1.0

func BuildVizData(data *DiscussionData) VizData {
	return VizData{
		Timeline:  buildTimeline(data.Topics),
		Speakers:  buildSpeakerStats(data.Transcription),
		Hierarchy: buildHierarchy(data.Topics),
		Sentiment: buildSentiment(data.Sentiment),
	}
}

func buildTimeline(topics []types.Topic) Timeline {
	tl := Timeline{
		Labels: make([]string, len(topics)),
		Start:  make([]float64, len(topics)),
		End:    make([]float64, len(topics)),
	}
	for i, t := range topics {
		tl.Labels[i] = t.Name
		tl.Start[i] = t.StartTime
		tl.End[i] = t.EndTime
	}
	return tl
}

// buildSpeakerStats sums spoken time per speaker in order of first
// appearance.
func buildSpeakerStats(segments []types.TranscriptionSegment) SpeakerStats {
	stats := SpeakerStats{Speakers: []string{}, Durations: []float64{}}
	index := make(map[string]int)
	for _, seg := range segments {
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(stats.Speakers)
			index[seg.Speaker] = i
			stats.Speakers = append(stats.Speakers, seg.Speaker)
			stats.Durations = append(stats.Durations, 0)
		}
		stats.Durations[i] += seg.End - seg.Start
	}
	return stats
}

func buildHierarchy(topics []types.Topic) HierarchyGraph {
	g := HierarchyGraph{Nodes: make([]HierarchyNode, len(topics)), Links: []HierarchyLink{}}
	for i, t := range topics {
		g.Nodes[i] = HierarchyNode{ID: t.Name, Value: t.Importance(defaultImportance)}
	}
	return g
}

func buildSentiment(s *types.SentimentSummary) SentimentSeries {
	series := SentimentSeries{Timeline: []SentimentPoint{}, SpeakerSentiments: map[string]float64{}}
	if s == nil {
		return series
	}
	series.OverallSentiment = s.OverallSentiment
	for _, r := range s.SentimentTimeline {
		series.Timeline = append(series.Timeline, SentimentPoint{
			Timestamp:      r.Timestamp,
			SentimentScore: r.SentimentScore,
			SpeakerID:      r.SpeakerID,
			Text:           r.Text,
		})
	}
	for speaker, score := range s.SpeakerSentiments {
		series.SpeakerSentiments[speaker] = score
	}
	return series
}

// TopicBranch is a parent topic and its subtopics, both known topics.
type TopicBranch struct {
	Parent   string
	Children []string
}

// buildTopicTree derives the hierarchy shown in the report from the topic
// arena. Names in data.Hierarchy that are not topics are left out.
func buildTopicTree(data *DiscussionData) []TopicBranch {
	arena := types.TopicAnalysisResult{
		Topics:    append([]types.Topic(nil), data.Topics...),
		Hierarchy: data.Hierarchy,
	}
	if data.Hierarchy != nil {
		arena.AssembleHierarchy()
	}

	var tree []TopicBranch
	for i, t := range arena.Topics {
		if len(t.Subtopics) == 0 {
			continue
		}
		branch := TopicBranch{Parent: t.Name}
		for _, sub := range arena.SubtopicsOf(i) {
			branch.Children = append(branch.Children, sub.Name)
		}
		tree = append(tree, branch)
	}
	return tree
}

// reportPage is the template root.
type reportPage struct {
	Data      *DiscussionData
	Viz       VizData
	Tree      []TopicBranch
	Generated time.Time
}
