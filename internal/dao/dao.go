package dao

import (
	"context"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// TimeRange optionally restricts transcript reads. A segment matches when it
// overlaps the range: end_time >= Start and start_time <= End.
type TimeRange struct {
	Start *float64
	End   *float64
}

// DiscussionSummary is the joined read model of one recording.
type DiscussionSummary struct {
	Metadata   types.Recording   `json:"metadata"`
	Topics     []types.Topic     `json:"topics"`
	Arguments  []types.Argument  `json:"arguments"`
	Agreements []types.Agreement `json:"agreements"`
	Gaps       []types.Gap       `json:"gaps"`
}

// DataAccess is the persistence capability consumed by the pipeline and the
// HTTP handlers.
type DataAccess interface {
	StoreRecording(ctx context.Context, rec types.Recording) error
	StoreTranscription(ctx context.Context, recordingID string, segments []types.TranscriptionSegment) error
	StoreTopic(ctx context.Context, recordingID string, topic types.Topic) (int64, error)
	StoreTopics(ctx context.Context, recordingID string, topics []types.Topic) ([]int64, error)
	StoreSentiment(ctx context.Context, recordingID string, result types.SentimentResult) (int64, error)
	StoreSentiments(ctx context.Context, recordingID string, results []types.SentimentResult) ([]int64, error)
	StoreArgument(ctx context.Context, arg types.Argument) (int64, error)
	StoreAgreement(ctx context.Context, agreement types.Agreement) (int64, error)
	StoreGap(ctx context.Context, gap types.Gap) (int64, error)

	GetRecordingMetadata(ctx context.Context, recordingID string) (*types.Recording, error)
	ListRecordings(ctx context.Context, limit int) ([]types.Recording, error)
	GetTranscription(ctx context.Context, recordingID string, window TimeRange) ([]types.TranscriptionSegment, error)
	GetTopics(ctx context.Context, recordingID string) ([]types.Topic, error)
	GetArguments(ctx context.Context, recordingID string, topicID *int64) ([]types.Argument, error)
	GetAgreements(ctx context.Context, recordingID string, argumentID *int64) ([]types.Agreement, error)
	GetGaps(ctx context.Context, recordingID string, topicID *int64) ([]types.Gap, error)
	GetSentimentAnalysis(ctx context.Context, recordingID string) (*types.SentimentSummary, error)
	GetDiscussionSummary(ctx context.Context, recordingID string) (*DiscussionSummary, error)

	Close() error
}

var _ DataAccess = (*Session)(nil)
