package provisioning

import (
	"errors"
	"fmt"

	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/util/async"
)

// TimeoutError is returned when a poll deadline passes.
type TimeoutError = poll.TimeoutError

// JoinError reports the first failed sub-operation of a fan-out.
type JoinError = async.JoinError

// ErrUnknownStage is wrapped when a workflow reaches a stage with no handler.
var ErrUnknownStage = errors.New("unknown stage")

// PermanentProviderError is a remote call failure that is not retried.
type PermanentProviderError struct {
	Op  string
	Err error
}

func (e *PermanentProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentProviderError) Unwrap() error {
	return e.Err
}

// Permanent wraps a provider error for op. A nil err stays nil.
func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentProviderError{Op: op, Err: err}
}

// CleanupError accumulates failures of auxiliary deletions during teardown.
// It is recorded on the workflow state and never fails the workflow.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

// Add records err if it is not nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether anything was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// panicError wraps a recovered handler panic.
type panicError struct {
	stage Stage
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.stage, e.value)
}
