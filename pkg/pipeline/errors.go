package pipeline

import (
	"errors"
	"fmt"
)

// ErrExhausted signals that a producer has no more items for the current
// run. It is flow control, not a failure; the pipeline ends the run cleanly.
var ErrExhausted = errors.New("producer exhausted")

// StageError records a stage failure against the item that triggered it.
// The pipeline isolates it to the single item; callers running a pipeline
// as a nested stage can recover it with errors.As.
type StageError struct {
	Stage string
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Key, e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
