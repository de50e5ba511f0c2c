package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrent jobs per join when no limit is given.
const DefaultLimit = 50

// JoinError reports the first job of a join that failed.
type JoinError struct {
	Task  string
	Index int
	Err   error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// Job is a named operation producing a value.
type Job[T any] struct {
	Name string
	Func func(context.Context) (T, error)
}

// Join runs jobs with at most limit in flight and returns their results in
// submission order. An empty job list succeeds immediately with nil.
func Join[T any](ctx context.Context, limit int, jobs []Job[T]) ([]T, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]T, len(jobs))
	var failed atomic.Bool

	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		if failed.Load() {
			break
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			v, err := job.Func(ctx)
			if err != nil {
				failed.Store(true)
				return &JoinError{Task: job.Name, Index: i, Err: err}
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Countdown is a shared counter that calls onZero once after Done has been
// called n times.
type Countdown struct {
	remaining atomic.Int64
	onZero    func()
	once      sync.Once
}

// NewCountdown returns a Countdown over n participants. If n is not positive
// onZero runs immediately.
func NewCountdown(n int, onZero func()) *Countdown {
	c := &Countdown{onZero: onZero}
	c.remaining.Store(int64(n))
	if n <= 0 {
		c.fire()
	}
	return c
}

// Done marks one participant complete.
func (c *Countdown) Done() {
	if c.remaining.Add(-1) == 0 {
		c.fire()
	}
}

// Remaining returns the participants still outstanding.
func (c *Countdown) Remaining() int {
	return int(c.remaining.Load())
}

func (c *Countdown) fire() {
	c.once.Do(c.onZero)
}
