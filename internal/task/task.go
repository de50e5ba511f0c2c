// Package task reports workflow outcomes to the task that requested them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// Notifier receives the terminal outcome of a workflow. Exactly one of
// Finish or Fail is called per request.
type Notifier interface {
	Finish(ctx context.Context, taskRef string) error
	Fail(ctx context.Context, taskRef string, cause error) error
}

// Once forwards only the first terminal call to Next and drops the rest.
// Dropped calls are logged; they indicate a bug in the caller.
type Once struct {
	Next   Notifier
	Logger logr.Logger

	once sync.Once
}

// Finish implements Notifier.
func (o *Once) Finish(ctx context.Context, taskRef string) error {
	var err error
	called := false
	o.once.Do(func() {
		called = true
		err = o.Next.Finish(ctx, taskRef)
	})
	if !called {
		o.Logger.Info("dropping duplicate terminal notification", "task", taskRef, "outcome", "finish")
	}
	return err
}

// Fail implements Notifier.
func (o *Once) Fail(ctx context.Context, taskRef string, cause error) error {
	var err error
	called := false
	o.once.Do(func() {
		called = true
		err = o.Next.Fail(ctx, taskRef, cause)
	})
	if !called {
		o.Logger.Info("dropping duplicate terminal notification", "task", taskRef, "outcome", "fail", "cause", cause)
	}
	return err
}

// Outcome is a recorded terminal notification.
type Outcome struct {
	TaskRef string
	Err     error
}

// Succeeded reports whether the outcome came through Finish.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Recorder captures outcomes. Done is closed after the first one.
type Recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	finishes int
	fails    int
	done     chan struct{}
	doneOnce sync.Once
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{})}
}

// Finish implements Notifier.
func (r *Recorder) Finish(_ context.Context, taskRef string) error {
	r.record(Outcome{TaskRef: taskRef}, true)
	return nil
}

// Fail implements Notifier.
func (r *Recorder) Fail(_ context.Context, taskRef string, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("task %s failed without a cause", taskRef)
	}
	r.record(Outcome{TaskRef: taskRef, Err: cause}, false)
	return nil
}

func (r *Recorder) record(o Outcome, finished bool) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	if finished {
		r.finishes++
	} else {
		r.fails++
	}
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
}

// Done is closed once any outcome has been recorded.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Outcomes returns a copy of everything recorded so far.
func (r *Recorder) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// Counts returns how many times Finish and Fail were called.
func (r *Recorder) Counts() (finishes, fails int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishes, r.fails
}

// LogNotifier writes outcomes to a logger.
type LogNotifier struct {
	Logger logr.Logger
}

// Finish implements Notifier.
func (n LogNotifier) Finish(_ context.Context, taskRef string) error {
	n.Logger.Info("task finished", "task", taskRef)
	return nil
}

// Fail implements Notifier.
func (n LogNotifier) Fail(_ context.Context, taskRef string, cause error) error {
	n.Logger.Error(cause, "task failed", "task", taskRef)
	return nil
}

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

// Finish implements Notifier.
func (m Multi) Finish(ctx context.Context, taskRef string) error {
	var errs []error
	for _, n := range m {
		if err := n.Finish(ctx, taskRef); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fail implements Notifier.
func (m Multi) Fail(ctx context.Context, taskRef string, cause error) error {
	var errs []error
	for _, n := range m {
		if err := n.Fail(ctx, taskRef, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
