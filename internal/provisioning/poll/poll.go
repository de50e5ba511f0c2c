// Package poll waits for a remote resource to reach a desired status.
//
// A Poller describes the resource on a fixed interval until its status equals
// the desired one, it enters a failure status, the describe call fails with
// anything other than the "not yet visible" error, or the deadline passes.
// The deadline is checked at the start of every attempt, so an attempt that
// starts at or after the deadline fails without describing the resource.
package poll

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// DefaultInterval is the delay between attempts when none is configured.
const DefaultInterval = 5 * time.Second

// Attempt outcomes reported to an AttemptRecorder.
const (
	OutcomeReady     = "ready"
	OutcomePending   = "pending"
	OutcomeTransient = "transient"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// AttemptRecorder observes poll attempts.
type AttemptRecorder interface {
	RecordPollAttempt(outcome string)
}

// Snapshot is what a describe call reports about a resource.
type Snapshot struct {
	ID     string
	Status string
	// Failure is set when the provider reports the resource or operation as
	// failed independently of its status.
	Failure string
	// Resource is the provider object, passed through untouched.
	Resource any
}

// Request describes one wait.
type Request struct {
	ResourceID    string
	Desired       string
	FailureStates []string
	Deadline      time.Time
	Describe      func(ctx context.Context) (Snapshot, error)
}

// TimeoutError is returned when the deadline passes before the resource
// reaches the desired status.
type TimeoutError struct {
	ResourceID string
	Desired    string
	Deadline   time.Time
	LastStatus string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for %s to reach %q (deadline %s)",
		e.ResourceID, e.Desired, e.Deadline.UTC().Format(time.RFC3339))
	if e.LastStatus != "" {
		msg += fmt.Sprintf(", last status %q", e.LastStatus)
	}
	return msg
}

// FailedError is returned when the resource reports a failure status or a
// failure indicator, or the describe call fails permanently.
type FailedError struct {
	ResourceID string
	Status     string
	Message    string
	Err        error
}

func (e *FailedError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("describing %s failed: %v", e.ResourceID, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s failed: %s", e.ResourceID, e.Message)
	default:
		return fmt.Sprintf("resource %s is in state %s", e.ResourceID, e.Status)
	}
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// Poller waits for resources. The zero value polls every DefaultInterval on
// the wall clock and treats no error as transient.
type Poller struct {
	Interval    time.Duration
	Clock       Clock
	IsTransient func(error) bool
	Recorder    AttemptRecorder
}

// Await polls until req reaches a terminal outcome and returns the final
// snapshot on success. Describe is the only remote call made; it must be
// read-only.
func (p *Poller) Await(ctx context.Context, req Request) (Snapshot, error) {
	if req.Describe == nil {
		return Snapshot{}, errors.New("poll request has no describe function")
	}
	clock := p.clock()
	interval := p.interval()

	var last string
	for {
		if !clock.Now().Before(req.Deadline) {
			p.record(OutcomeTimeout)
			return Snapshot{}, &TimeoutError{
				ResourceID: req.ResourceID,
				Desired:    req.Desired,
				Deadline:   req.Deadline,
				LastStatus: last,
			}
		}

		snap, err := req.Describe(ctx)
		switch {
		case err != nil && p.IsTransient != nil && p.IsTransient(err):
			p.record(OutcomeTransient)
		case err != nil:
			p.record(OutcomeFailed)
			return Snapshot{}, &FailedError{ResourceID: req.ResourceID, Err: err}
		case snap.Failure != "":
			p.record(OutcomeFailed)
			return snap, &FailedError{ResourceID: req.ResourceID, Status: snap.Status, Message: snap.Failure}
		case slices.Contains(req.FailureStates, snap.Status):
			p.record(OutcomeFailed)
			return snap, &FailedError{ResourceID: req.ResourceID, Status: snap.Status}
		case snap.Status == req.Desired:
			p.record(OutcomeReady)
			return snap, nil
		default:
			p.record(OutcomePending)
			last = snap.Status
		}

		select {
		case <-clock.After(interval):
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

func (p *Poller) clock() Clock {
	if p.Clock == nil {
		return RealClock
	}
	return p.Clock
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p *Poller) record(outcome string) {
	if p.Recorder != nil {
		p.Recorder.RecordPollAttempt(outcome)
	}
}
