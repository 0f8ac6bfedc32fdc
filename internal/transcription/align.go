package transcription

import (
	"sort"
	"strings"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// SpeakerSegments sorts turns by start time and merges adjacent turns of the
// same speaker.
func SpeakerSegments(turns []Turn) []types.SpeakerSegment {
	sorted := make([]Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var segments []types.SpeakerSegment
	for _, t := range sorted {
		if n := len(segments); n > 0 && segments[n-1].SpeakerID == t.Speaker {
			if t.End > segments[n-1].EndTime {
				segments[n-1].EndTime = t.End
			}
			continue
		}
		segments = append(segments, types.SpeakerSegment{
			StartTime: t.Start,
			EndTime:   t.End,
			SpeakerID: t.Speaker,
		})
	}
	return segments
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return max(0, min(aEnd, bEnd)-max(aStart, bStart))
}

// Align labels each unit with the speaker segment it overlaps most. The
// earliest segment wins a tie and units overlapping no segment are dropped.
// The text of every kept unit is appended to its segment in place.
func Align(units []types.TranscriptionSegment, segments []types.SpeakerSegment) []types.TranscriptionSegment {
	aligned := make([]types.TranscriptionSegment, 0, len(units))
	for _, u := range units {
		best, bestOverlap := -1, 0.0
		for i, s := range segments {
			if o := overlap(u.Start, u.End, s.StartTime, s.EndTime); o > bestOverlap {
				best, bestOverlap = i, o
			}
		}
		if best < 0 {
			continue
		}
		u.Speaker = segments[best].SpeakerID
		aligned = append(aligned, u)

		seg := &segments[best]
		if seg.Text == "" {
			seg.Text = u.Text
		} else {
			seg.Text = strings.Join([]string{seg.Text, u.Text}, " ")
		}
	}
	return aligned
}

// CountSpeakers returns the number of distinct speaker ids.
func CountSpeakers(segments []types.SpeakerSegment) int {
	seen := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		seen[s.SpeakerID] = struct{}{}
	}
	return len(seen)
}
