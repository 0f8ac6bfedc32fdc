package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

var (
	topicsSchema    = llm.GenerateSchema(&TopicsResponse{})
	hierarchySchema = llm.GenerateSchema(&HierarchyResponse{})
)

// TopicAnalyzer extracts topics and their hierarchy with two LLM calls.
type TopicAnalyzer struct {
	client      llm.Client
	temperature float64
	now         func() time.Time
}

func NewTopicAnalyzer(client llm.Client) *TopicAnalyzer {
	return &TopicAnalyzer{client: client, temperature: llm.DefaultTemperature, now: time.Now}
}

// Analyze asks for topics, then for their hierarchy, and assembles the
// derived subtopic links. Every failure is a *TopicAnalysisError.
func (a *TopicAnalyzer) Analyze(ctx context.Context, segments []types.TranscriptionSegment) (*types.TopicAnalysisResult, error) {
	if len(segments) == 0 {
		return nil, &TopicAnalysisError{Err: ErrNoSegments}
	}
	transcript := FormatTranscript(segments)

	topics, err := a.extractTopics(ctx, transcript)
	if err != nil {
		logger.Error("Topic extraction failed", "err", err)
		return nil, &TopicAnalysisError{Step: "topics", Err: err}
	}

	result := &types.TopicAnalysisResult{Topics: topics, Timestamp: a.now()}
	hierarchy, err := a.extractHierarchy(ctx, result.Names(), transcript)
	if err != nil {
		logger.Error("Hierarchy extraction failed", "err", err)
		return nil, &TopicAnalysisError{Step: "hierarchy", Err: err}
	}
	result.Hierarchy = hierarchy
	result.AssembleHierarchy()

	logger.Info("Topic analysis complete", "topics", len(result.Topics), "parents", len(result.Hierarchy))
	return result, nil
}

func (a *TopicAnalyzer) extractTopics(ctx context.Context, transcript string) ([]types.Topic, error) {
	resp, err := a.client.Complete(ctx, llm.Request{
		Name:         "topics",
		Description:  "Main topics of the discussion with their time spans",
		SystemPrompt: topicsSystemPrompt,
		UserContent:  transcript,
		Temperature:  a.temperature,
		Schema:       topicsSchema,
	})
	if err != nil {
		return nil, err
	}

	var items []TopicItem
	if err := llm.DecodeKey(resp, "topics", &items); err != nil {
		return nil, err
	}

	topics := make([]types.Topic, 0, len(items))
	for i, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, &llm.ValidationError{Reason: fmt.Sprintf("topic %d has no name", i)}
		}
		if item.Importance != nil && (*item.Importance < 0 || *item.Importance > 1) {
			return nil, &llm.ValidationError{Reason: fmt.Sprintf("topic %q importance %v outside [0,1]", name, *item.Importance)}
		}
		topics = append(topics, types.Topic{
			Name:            name,
			StartTime:       item.StartTime,
			EndTime:         item.EndTime,
			ImportanceScore: item.Importance,
		})
	}
	return topics, nil
}

func (a *TopicAnalyzer) extractHierarchy(ctx context.Context, names []string, transcript string) (types.Hierarchy, error) {
	resp, err := a.client.Complete(ctx, llm.Request{
		Name:         "hierarchy",
		Description:  "Parent to child relationships between the given topics",
		SystemPrompt: hierarchySystemPrompt,
		UserContent:  hierarchyPrompt(names, transcript),
		Temperature:  a.temperature,
		Schema:       hierarchySchema,
	})
	if err != nil {
		return nil, err
	}

	var hierarchy types.Hierarchy
	if err := llm.DecodeKey(resp, "hierarchy", &hierarchy); err != nil {
		return nil, err
	}
	if hierarchy == nil {
		hierarchy = types.Hierarchy{}
	}
	return hierarchy, nil
}
