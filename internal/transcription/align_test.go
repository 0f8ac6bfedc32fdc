package transcription

import (
	"reflect"
	"testing"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

func TestSpeakerSegmentsSortsAndCoalesces(t *testing.T) {
	turns := []Turn{
		{Start: 10, End: 12, Speaker: "B"},
		{Start: 0, End: 5, Speaker: "A"},
		{Start: 5, End: 9, Speaker: "A"},
		{Start: 12, End: 15, Speaker: "A"},
	}
	got := SpeakerSegments(turns)
	want := []types.SpeakerSegment{
		{StartTime: 0, EndTime: 9, SpeakerID: "A"},
		{StartTime: 10, EndTime: 12, SpeakerID: "B"},
		{StartTime: 12, EndTime: 15, SpeakerID: "A"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SpeakerSegments = %+v, want %+v", got, want)
	}
	if n := CountSpeakers(got); n != 2 {
		t.Errorf("CountSpeakers = %d, want 2", n)
	}
}

func TestAlign(t *testing.T) {
	tests := []struct {
		name        string
		unit        types.TranscriptionSegment
		wantSpeaker string
		wantDropped bool
	}{
		{"single overlap", types.TranscriptionSegment{Text: "hi", Start: 1, End: 2}, "A", false},
		{"largest overlap wins", types.TranscriptionSegment{Text: "mostly b", Start: 9, End: 13}, "B", false},
		{"tie goes to earliest", types.TranscriptionSegment{Text: "tie", Start: 9, End: 11}, "A", false},
		{"touching is not overlap", types.TranscriptionSegment{Text: "edge", Start: 20, End: 21}, "", true},
		{"gap dropped", types.TranscriptionSegment{Text: "silence", Start: 30, End: 31}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := []types.SpeakerSegment{
				{StartTime: 0, EndTime: 10, SpeakerID: "A"},
				{StartTime: 10, EndTime: 20, SpeakerID: "B"},
			}
			got := Align([]types.TranscriptionSegment{tt.unit}, segments)
			if tt.wantDropped {
				if len(got) != 0 {
					t.Fatalf("Align kept %+v, want dropped", got)
				}
				if segments[0].Text != "" || segments[1].Text != "" {
					t.Errorf("dropped unit leaked text: %+v", segments)
				}
				return
			}
			if len(got) != 1 || got[0].Speaker != tt.wantSpeaker {
				t.Fatalf("Align = %+v, want speaker %q", got, tt.wantSpeaker)
			}
		})
	}
}

func TestAlignAccumulatesText(t *testing.T) {
	segments := []types.SpeakerSegment{{StartTime: 0, EndTime: 10, SpeakerID: "A"}}
	units := []types.TranscriptionSegment{
		{Text: "hello", Start: 0, End: 1},
		{Text: "world", Start: 1, End: 2},
	}
	Align(units, segments)
	if got, want := segments[0].Text, "hello world"; got != want {
		t.Errorf("segment text = %q, want %q", got, want)
	}
	if units[0].Speaker != "" {
		t.Errorf("Align mutated its input units")
	}
}
