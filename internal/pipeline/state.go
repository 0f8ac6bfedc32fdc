package pipeline

// State is a step of the linear pipeline state machine.
type State string

const (
	StateStart               State = "START"
	StateAudioProcessed      State = "AUDIO_PROCESSED"
	StateRecordingStored     State = "RECORDING_STORED"
	StateTranscriptionStored State = "TRANSCRIPTION_STORED"
	StateTopicsAnalyzed      State = "TOPICS_ANALYZED"
	StateSentimentAnalyzed   State = "SENTIMENT_ANALYZED"
	StateTopicsStored        State = "TOPICS_STORED"
	StateReportGenerated     State = "REPORT_GENERATED"
	StateDone                State = "DONE"
	StateFailed              State = "FAILED"
)

// audioShare is the part of overall progress covered by audio processing.
const audioShare = 0.4

var checkpoints = map[State]float64{
	StateStart:               0,
	StateAudioProcessed:      audioShare,
	StateRecordingStored:     0.45,
	StateTranscriptionStored: 0.5,
	StateTopicsAnalyzed:      0.7,
	StateSentimentAnalyzed:   0.85,
	StateTopicsStored:        0.9,
	StateReportGenerated:     0.95,
	StateDone:                1,
}

// Progress is the orchestrator's progress callback.
type Progress func(progress float64, stage string)
