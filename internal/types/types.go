package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceCLI    = "cli"
)

// AudioMetadata describes a source audio file. Derived once per input.
type AudioMetadata struct {
	Duration   float64 `json:"duration"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	FileSize   int64   `json:"file_size"`
}

// TranscriptionSegment is one recognized word or utterance window.
type TranscriptionSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"`
}

// Midpoint returns the center of the segment interval.
func (s TranscriptionSegment) Midpoint() float64 {
	return (s.Start + s.End) / 2
}

// SpeakerSegment is a diarization turn with the text aligned onto it.
type SpeakerSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
}

// ProcessingResult is what the audio stage hands to the pipeline.
type ProcessingResult struct {
	Metadata              AudioMetadata          `json:"metadata"`
	TranscriptionSegments []TranscriptionSegment `json:"transcription_segments"`
	SpeakerSegments       []SpeakerSegment       `json:"speaker_segments"`
	TotalSpeakers         int                    `json:"total_speakers"`

	// ProcessedPath is set when the caller asked the processor to keep its
	// normalized copy instead of deleting it.
	ProcessedPath string `json:"-"`
}

// Recording is the persisted row for one processed input.
type Recording struct {
	RecordingID   string    `json:"recording_id"`
	FilePath      string    `json:"file_path"`
	Duration      float64   `json:"duration"`
	RecordingDate time.Time `json:"recording_date"`
	Format        string    `json:"format"`
}

// SentimentResult is the score for one transcript segment.
type SentimentResult struct {
	SpeakerID      string   `json:"speaker_id"`
	Timestamp      float64  `json:"timestamp"`
	SentimentScore float64  `json:"sentiment_score"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Text           string   `json:"text"`
}

// SentimentSummary aggregates a full sentiment pass.
type SentimentSummary struct {
	OverallSentiment  float64            `json:"overall_sentiment"`
	SentimentTimeline []SentimentResult  `json:"sentiment_timeline"`
	SpeakerSentiments map[string]float64 `json:"speaker_sentiments"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Argument, Agreement and Gap are the extended discussion entities.
type Argument struct {
	ArgumentID   int64   `json:"argument_id"`
	RecordingID  string  `json:"recording_id"`
	TopicID      *int64  `json:"topic_id,omitempty"`
	SpeakerID    string  `json:"speaker_id"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	ArgumentText string  `json:"argument_text"`
	ArgumentType string  `json:"argument_type"`
	Conclusion   string  `json:"conclusion,omitempty"`
}

type Agreement struct {
	AgreementID   int64   `json:"agreement_id"`
	ArgumentID    int64   `json:"argument_id"`
	SpeakerID     string  `json:"speaker_id"`
	AgreementType string  `json:"agreement_type"`
	Timestamp     float64 `json:"timestamp"`
}

type Gap struct {
	GapID           int64   `json:"gap_id"`
	RecordingID     string  `json:"recording_id"`
	TopicID         *int64  `json:"topic_id,omitempty"`
	GapType         string  `json:"gap_type"`
	Description     string  `json:"description"`
	ImportanceScore float64 `json:"importance_score"`
}
