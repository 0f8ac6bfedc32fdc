package analysis

import (
	"errors"
	"fmt"
)

// ErrNoSegments is returned when there is no transcript to analyze.
var ErrNoSegments = errors.New("no transcript segments")

// TopicAnalysisError wraps any failure of topic extraction. Step is
// "topics" or "hierarchy" when the failing LLM call is known.
type TopicAnalysisError struct {
	Step string
	Err  error
}

func (e *TopicAnalysisError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("topic analysis failed: %v", e.Err)
	}
	return fmt.Sprintf("topic analysis failed (%s): %v", e.Step, e.Err)
}

func (e *TopicAnalysisError) Unwrap() error { return e.Err }

// AnalysisError wraps a sentiment analysis failure. Segment is the index of
// the failing segment, or -1.
type AnalysisError struct {
	Segment int
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("sentiment analysis failed: %v", e.Err)
	}
	return fmt.Sprintf("sentiment analysis failed at segment %d: %v", e.Segment, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
