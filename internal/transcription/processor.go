package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// ProgressFunc receives a monotonically increasing fraction in [0,1] and a
// stage label.
type ProgressFunc func(progress float64, stage string)

// Processor runs preprocessing, transcription, diarization and alignment.
type Processor struct {
	pre         Preprocessor
	prober      Prober
	transcriber Transcriber
	diarizer    Diarizer
}

func NewProcessor(pre Preprocessor, prober Prober, transcriber Transcriber, diarizer Diarizer) (*Processor, error) {
	switch {
	case pre == nil:
		return nil, stageErr(StageInitialization, errors.New("no preprocessor"))
	case prober == nil:
		return nil, stageErr(StageInitialization, errors.New("no prober"))
	case transcriber == nil:
		return nil, stageErr(StageInitialization, errors.New("no transcriber"))
	case diarizer == nil:
		return nil, stageErr(StageInitialization, errors.New("no diarizer"))
	}
	return &Processor{pre: pre, prober: prober, transcriber: transcriber, diarizer: diarizer}, nil
}

// Process turns an audio file into aligned transcript and speaker segments.
// The preprocessed temp file is removed on every path, except that a
// successful run with cfg.KeepProcessed hands it to the caller.
func (p *Processor) Process(ctx context.Context, audioPath string, cfg ProcessingConfig, progress ProgressFunc) (result *types.ProcessingResult, err error) {
	if progress == nil {
		progress = func(float64, string) {}
	}
	cfg = cfg.withDefaults()

	progress(0.0, "validating")
	if err := validateInput(audioPath); err != nil {
		return nil, stageErr(StageValidation, err)
	}

	meta, err := p.prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, stageErr(StageMetadata, err)
	}

	progress(0.1, "preprocessing")
	tmp, err := p.pre.Preprocess(ctx, audioPath, cfg)
	if err != nil {
		return nil, stageErr(StagePreprocessing, err)
	}
	defer func() {
		if err == nil && cfg.KeepProcessed {
			result.ProcessedPath = tmp
			return
		}
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("Failed to remove temp audio", "path", tmp, "err", rmErr)
		}
	}()

	progress(0.3, "transcribing")
	units, err := p.transcriber.Transcribe(ctx, tmp)
	if err != nil {
		return nil, stageErr(StageProcessing, fmt.Errorf("transcription: %w", err))
	}

	progress(0.5, "diarizing")
	turns, err := p.diarizer.Diarize(ctx, tmp)
	if err != nil {
		return nil, stageErr(StageProcessing, fmt.Errorf("diarization: %w", err))
	}

	progress(0.7, "combining")
	speakers := SpeakerSegments(turns)
	aligned := Align(units, speakers)
	if dropped := len(units) - len(aligned); dropped > 0 {
		logger.Debug("Dropped units without speaker overlap", "dropped", dropped)
	}

	result = &types.ProcessingResult{
		Metadata:              *meta,
		TranscriptionSegments: aligned,
		SpeakerSegments:       speakers,
		TotalSpeakers:         CountSpeakers(speakers),
	}
	progress(1.0, "complete")
	logger.Info("Audio processed",
		"segments", len(aligned), "speakers", result.TotalSpeakers, "duration", meta.Duration)
	return result, nil
}

func validateInput(audioPath string) error {
	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidInput, audioPath)
	}
	if !ValidateAudioFormat(audioPath) {
		return fmt.Errorf("%w: unsupported format %s", ErrInvalidInput, audioPath)
	}
	return nil
}
