package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// SupportedFormats lists the accepted input extensions.
var SupportedFormats = []string{".wav", ".mp3", ".m4a", ".flac"}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ProcessingConfig controls preprocessing of the input.
type ProcessingConfig struct {
	SampleRate int
	Channels   int
	Format     string
	Normalize  bool
	// KeepProcessed hands the preprocessed file to the caller on success
	// (ProcessingResult.ProcessedPath) instead of deleting it.
	KeepProcessed bool
}

func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{SampleRate: 16000, Channels: 1, Format: "wav", Normalize: true}
}

func (c ProcessingConfig) withDefaults() ProcessingConfig {
	d := DefaultProcessingConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	return c
}

// Preprocessor writes a resampled copy of an input file and returns its path.
type Preprocessor interface {
	Preprocess(ctx context.Context, inputPath string, cfg ProcessingConfig) (string, error)
}

// Prober reads the metadata of an audio file.
type Prober interface {
	Probe(ctx context.Context, path string) (*types.AudioMetadata, error)
}

// FFmpeg converts audio with the ffmpeg binary.
type FFmpeg struct {
	Binary  string
	TempDir string
}

func NewFFmpeg(binary, tempDir string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FFmpeg{Binary: binary, TempDir: tempDir}
}

func ffmpegArgs(inputPath, outputPath string, cfg ProcessingConfig) []string {
	args := []string{
		"-i", inputPath,
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
	}
	if cfg.Normalize {
		args = append(args, "-af", "loudnorm")
	}
	if strings.EqualFold(cfg.Format, "wav") {
		args = append(args, "-c:a", "pcm_s16le")
	}
	return append(args, "-y", outputPath)
}

// Preprocess resamples, downmixes and optionally loudness-normalizes the input.
func (f *FFmpeg) Preprocess(ctx context.Context, inputPath string, cfg ProcessingConfig) (string, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(f.TempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	outputPath := filepath.Join(f.TempDir, fmt.Sprintf("normalized_%s.%s", uuid.New().String(), cfg.Format))

	cmd := exec.CommandContext(ctx, f.Binary, ffmpegArgs(inputPath, outputPath, cfg)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, tail(output, 2000))
	}
	return outputPath, nil
}

// FFprobe extracts metadata with the ffprobe binary.
type FFprobe struct {
	Binary string
}

func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{Binary: binary}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

func (p *FFprobe) Probe(ctx context.Context, path string) (*types.AudioMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	meta, err := parseProbe(output)
	if err != nil {
		return nil, err
	}
	meta.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	meta.FileSize = info.Size()
	return meta, nil
}

func parseProbe(data []byte) (*types.AudioMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := &types.AudioMetadata{}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
		meta.Duration = d
	}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if rate, err := strconv.Atoi(s.SampleRate); err == nil {
			meta.SampleRate = rate
		}
		meta.Channels = s.Channels
		return meta, nil
	}
	return nil, fmt.Errorf("no audio stream found")
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
