package analysis

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

const (
	topicsSystemPrompt    = "Analyze the discussion transcript and identify main topics. Respond only in JSON format."
	hierarchySystemPrompt = "Analyze the topics and identify hierarchical relationships. Respond only in JSON format."
	sentimentSystemPrompt = "Analyze the sentiment of the text. Return a sentiment score between -1 (very negative) " +
		"and 1 (very positive), and a confidence score between 0 and 1. Respond only in JSON format."
)

// TranscriptLine renders one segment as "[start] speaker: text".
func TranscriptLine(seg types.TranscriptionSegment) string {
	return fmt.Sprintf("[%.2f] %s: %s", seg.Start, seg.Speaker, seg.Text)
}

// FormatTranscript renders segments one per line in input order.
func FormatTranscript(segments []types.TranscriptionSegment) string {
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = TranscriptLine(seg)
	}
	return strings.Join(lines, "\n")
}

func hierarchyPrompt(names []string, transcript string) string {
	return fmt.Sprintf("Topics: %s\nContext: %s", strings.Join(names, ", "), transcript)
}
