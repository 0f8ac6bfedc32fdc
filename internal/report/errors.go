package report

import "fmt"

// GenerationError covers missing input fields, template failures and write
// failures.
type GenerationError struct {
	Msg string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
