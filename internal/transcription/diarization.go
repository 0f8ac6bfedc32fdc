package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Turn is one diarization interval.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarizer attributes time intervals of an audio file to speakers.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]Turn, error)
}

// ScriptDiarizer runs an external diarization script (pyannote) that prints
// a JSON array of turns on stdout.
type ScriptDiarizer struct {
	Command     string
	Script      string
	HFToken     string
	NumSpeakers int
}

func (d *ScriptDiarizer) Diarize(ctx context.Context, audioPath string) ([]Turn, error) {
	args := []string{d.Script, audioPath}
	if d.NumSpeakers > 0 {
		args = append(args, "--num-speakers", strconv.Itoa(d.NumSpeakers))
	}

	cmd := exec.CommandContext(ctx, d.Command, args...)
	cmd.Env = os.Environ()
	if d.HFToken != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+d.HFToken)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("diarization failed: %w\nOutput: %s", err, tail(stderr.Bytes(), 2000))
	}
	return parseTurns(stdout.Bytes())
}

func parseTurns(data []byte) ([]Turn, error) {
	var turns []Turn
	if err := json.Unmarshal(bytes.TrimSpace(data), &turns); err != nil {
		return nil, fmt.Errorf("failed to parse diarization output: %w", err)
	}
	for i, t := range turns {
		if t.End < t.Start {
			return nil, fmt.Errorf("diarization turn %d ends before it starts (%.2f < %.2f)", i, t.End, t.Start)
		}
	}
	return turns, nil
}
