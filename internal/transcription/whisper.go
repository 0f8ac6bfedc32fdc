package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// Transcriber turns an audio file into timestamped units. Units carry no
// speaker; that is assigned by alignment.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptionSegment, error)
}

// WhisperParams configures WhisperTranscriber.
type WhisperParams struct {
	// Command is the python interpreter for the whisper backend, or the
	// stable-ts executable for the stable-ts backend.
	Command  string
	Backend  string
	Model    string
	Language string
	Device   string
	WorkDir  string
}

// Transcription backends. stable-ts runs voice activity detection and is the
// default; plain whisper has no VAD and is kept as a fallback.
const (
	BackendStableTS = "stable-ts"
	BackendWhisper  = "whisper"
)

// WhisperTranscriber runs stable-ts (or plain Whisper) as a subprocess and
// reads its JSON output.
type WhisperTranscriber struct {
	params WhisperParams
	mu     sync.Mutex
}

func NewWhisperTranscriber(params WhisperParams) *WhisperTranscriber {
	if params.Backend == "" {
		params.Backend = BackendStableTS
	}
	if params.Command == "" {
		params.Command = "stable-ts"
		if params.Backend == BackendWhisper {
			params.Command = "python"
		}
	}
	if params.Model == "" {
		params.Model = "base"
	}
	if params.WorkDir == "" {
		params.WorkDir = os.TempDir()
	}
	if params.Backend == BackendWhisper {
		logger.Warn("Whisper backend runs without voice activity detection", "model", params.Model)
	}
	logger.Info("Whisper transcriber configured", "backend", params.Backend, "model", params.Model)
	return &WhisperTranscriber{params: params}
}

func (wt *WhisperTranscriber) args(audioPath, outDir string) (args []string, jsonPath string) {
	p := wt.params
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath = filepath.Join(outDir, base+".json")

	if p.Backend != BackendWhisper {
		args = []string{
			audioPath,
			"--model", p.Model,
			"--output", jsonPath,
			"--word_timestamps", "True",
			"--vad", "True",
		}
	} else {
		args = []string{
			"-m", "whisper",
			audioPath,
			"--model", p.Model,
			"--output_dir", outDir,
			"--output_format", "json",
			"--word_timestamps", "True",
			"--fp16", "False",
		}
	}
	if p.Language != "" {
		args = append(args, "--language", p.Language)
	}
	if p.Device != "" {
		args = append(args, "--device", p.Device)
	}
	return args, jsonPath
}

// Transcribe processes an audio file and returns word-level units.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptionSegment, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(wt.params.WorkDir, 0755); err != nil {
		return nil, err
	}
	outDir, err := os.MkdirTemp(wt.params.WorkDir, "whisper_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	args, jsonPath := wt.args(absAudioPath, outDir)
	logger.Debug("Running transcription", "command", wt.params.Command, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, wt.params.Command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, tail(output, 2000))
	}

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}
	units, err := parseWhisperOutput(jsonData)
	if err != nil {
		return nil, err
	}
	logger.Info("Transcription completed", "units", len(units))
	return units, nil
}

// WhisperOutput matches the JSON written by Whisper and stable-ts.
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

type WhisperSegment struct {
	ID         int           `json:"id"`
	Start      float64       `json:"start"`
	End        float64       `json:"end"`
	Text       string        `json:"text"`
	AvgLogprob float64       `json:"avg_logprob"`
	Words      []WhisperWord `json:"words"`
}

type WhisperWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// parseWhisperOutput flattens segments into word units. Segments without
// word timings become a single unit scored by exp(avg_logprob).
func parseWhisperOutput(data []byte) ([]types.TranscriptionSegment, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	var units []types.TranscriptionSegment
	for _, seg := range out.Segments {
		if len(seg.Words) == 0 {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			units = append(units, types.TranscriptionSegment{
				Text:       text,
				Start:      seg.Start,
				End:        seg.End,
				Confidence: math.Min(1, math.Exp(seg.AvgLogprob)),
			})
			continue
		}
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			units = append(units, types.TranscriptionSegment{
				Text:       text,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Probability,
			})
		}
	}
	return units, nil
}
