package transcription

import (
	"errors"
	"fmt"
)

// Stage tags where in the audio pipeline a ProcessingError happened.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageValidation     Stage = "validation"
	StagePreprocessing  Stage = "preprocessing"
	StageProcessing     Stage = "processing"
	StageMetadata       Stage = "metadata"
)

// ErrInvalidInput marks a missing file or a disallowed extension.
var ErrInvalidInput = errors.New("invalid audio input")

// ProcessingError is the single error type returned by Processor.Process.
type ProcessingError struct {
	Stage Stage
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("audio %s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}
