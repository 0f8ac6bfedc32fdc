package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

var sentimentSchema = llm.GenerateSchema(&SentimentResponse{})

// SentimentAnalyzer scores every segment with its own LLM call.
type SentimentAnalyzer struct {
	client      llm.Client
	concurrency int
	temperature float64
	now         func() time.Time
}

// NewSentimentAnalyzer creates an analyzer that keeps at most concurrency
// calls in flight (1 when concurrency <= 0).
func NewSentimentAnalyzer(client llm.Client, concurrency int) *SentimentAnalyzer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SentimentAnalyzer{
		client:      client,
		concurrency: concurrency,
		temperature: llm.DefaultTemperature,
		now:         time.Now,
	}
}

type segmentError struct {
	index int
	err   error
}

func (e *segmentError) Error() string { return e.err.Error() }
func (e *segmentError) Unwrap() error { return e.err }

// Analyze scores all segments and aggregates them. The first failing
// segment aborts the whole analysis.
func (a *SentimentAnalyzer) Analyze(ctx context.Context, segments []types.TranscriptionSegment) (*types.SentimentSummary, error) {
	if len(segments) == 0 {
		return nil, &AnalysisError{Segment: -1, Err: ErrNoSegments}
	}

	results := make([]types.SentimentResult, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			r, err := a.score(gctx, seg)
			if err != nil {
				return &segmentError{index: i, err: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var se *segmentError
		if errors.As(err, &se) {
			logger.Error("Sentiment analysis failed", "segment", se.index, "err", se.err)
			return nil, &AnalysisError{Segment: se.index, Err: se.err}
		}
		return nil, &AnalysisError{Segment: -1, Err: err}
	}

	summary, err := Summarize(results, a.now())
	if err != nil {
		return nil, &AnalysisError{Segment: -1, Err: err}
	}
	logger.Info("Sentiment analysis complete",
		"segments", len(results), "overall", fmt.Sprintf("%.3f", summary.OverallSentiment))
	return summary, nil
}

func (a *SentimentAnalyzer) score(ctx context.Context, seg types.TranscriptionSegment) (types.SentimentResult, error) {
	resp, err := a.client.Complete(ctx, llm.Request{
		Name:         "sentiment",
		Description:  "Sentiment score of a single utterance",
		SystemPrompt: sentimentSystemPrompt,
		UserContent:  seg.Text,
		Temperature:  a.temperature,
		Schema:       sentimentSchema,
	})
	if err != nil {
		return types.SentimentResult{}, err
	}

	var out SentimentResponse
	if err := llm.DecodeContent(resp, &out); err != nil {
		return types.SentimentResult{}, err
	}
	if out.SentimentScore == nil {
		return types.SentimentResult{}, &llm.ValidationError{Reason: `missing key "sentiment_score"`}
	}
	score := *out.SentimentScore
	if score < -1 || score > 1 {
		return types.SentimentResult{}, &llm.ValidationError{
			Reason: fmt.Sprintf("sentiment_score %v outside [-1,1]", score),
		}
	}
	if out.Confidence != nil && (*out.Confidence < 0 || *out.Confidence > 1) {
		return types.SentimentResult{}, &llm.ValidationError{
			Reason: fmt.Sprintf("confidence %v outside [0,1]", *out.Confidence),
		}
	}

	return types.SentimentResult{
		SpeakerID:      seg.Speaker,
		Timestamp:      seg.Midpoint(),
		SentimentScore: score,
		Confidence:     out.Confidence,
		Text:           seg.Text,
	}, nil
}

// Summarize computes the overall mean and per-speaker means of results.
// An empty input is ErrNoSegments.
func Summarize(results []types.SentimentResult, at time.Time) (*types.SentimentSummary, error) {
	if len(results) == 0 {
		return nil, ErrNoSegments
	}

	return types.NewSentimentSummary(results, at), nil
}
