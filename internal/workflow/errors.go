package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTopic is returned when a run starts without a topic.
	ErrEmptyTopic = errors.New("workflow: topic is required")

	// ErrNoHandler is returned when the transition table reaches a stage
	// with no registered handler.
	ErrNoHandler = errors.New("workflow: no handler registered")

	// ErrStageLimit is returned when a run exceeds the stage execution cap.
	ErrStageLimit = errors.New("workflow: stage execution limit exceeded")
)

// StageError reports the stage that failed a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
