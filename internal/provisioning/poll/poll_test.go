package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) RecordPollAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

// sequence returns a describe function replaying responses, repeating the last.
func sequence(responses ...func() (Snapshot, error)) (func(context.Context) (Snapshot, error), *int) {
	calls := 0
	return func(context.Context) (Snapshot, error) {
		i := min(calls, len(responses)-1)
		calls++
		return responses[i]()
	}, &calls
}

func status(s string) func() (Snapshot, error) {
	return func() (Snapshot, error) { return Snapshot{ID: "server/7", Status: s}, nil }
}

func fail(err error) func() (Snapshot, error) {
	return func() (Snapshot, error) { return Snapshot{}, err }
}

func newPoller(clock Clock, rec AttemptRecorder) *Poller {
	return &Poller{
		Interval:    5 * time.Second,
		Clock:       clock,
		IsTransient: hcloud_internal.IsNotYetVisible,
		Recorder:    rec,
	}
}

// Two not-found responses followed by running: success after three attempts
// spaced by the fixed interval.
func TestAwait_TransientNotFoundThenRunning(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(start)
	rec := &countingRecorder{}
	notFound := hcloud_internal.NotFoundError("server", 7)
	describe, calls := sequence(fail(notFound), fail(notFound), status("running"))

	snap, err := newPoller(clock, rec).Await(context.Background(), Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   start.Add(time.Minute),
		Describe:   describe,
	})

	require.NoError(t, err)
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.Sleeps())
	assert.Equal(t, map[string]int{OutcomeTransient: 2, OutcomeReady: 1}, rec.outcomes)
}

func TestAwait_PendingStatusesKeepPolling(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(start)
	describe, calls := sequence(status("initializing"), status("starting"), status("running"))

	_, err := newPoller(clock, nil).Await(context.Background(), Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   start.Add(time.Minute),
		Describe:   describe,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	assert.Len(t, clock.Sleeps(), 2, "each pending attempt schedules exactly one follow-up")
}

func TestAwait_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	boom := hcloud.Error{Code: hcloud.ErrorCodeForbidden, Message: "forbidden"}
	describe, calls := sequence(fail(boom), status("running"))

	_, err := newPoller(NewFakeClock(start), nil).Await(context.Background(), Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   start.Add(time.Minute),
		Describe:   describe,
	})

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, *calls)
}

func TestAwait_FailureIndicator(t *testing.T) {
	t.Parallel()

	describe, calls := sequence(func() (Snapshot, error) {
		return Snapshot{ID: "action/5", Status: "error", Failure: "placement failed"}, nil
	})

	_, err := newPoller(NewFakeClock(start), nil).Await(context.Background(), Request{
		ResourceID: "action/5",
		Desired:    "success",
		Deadline:   start.Add(time.Minute),
		Describe:   describe,
	})

	assert.EqualError(t, err, "action/5 failed: placement failed")
	assert.Equal(t, 1, *calls)
}

func TestAwait_FailureState(t *testing.T) {
	t.Parallel()

	describe, _ := sequence(status("starting"), status("off"))

	_, err := newPoller(NewFakeClock(start), nil).Await(context.Background(), Request{
		ResourceID:    "server/7",
		Desired:       "running",
		FailureStates: []string{"off", "deleting"},
		Deadline:      start.Add(time.Minute),
		Describe:      describe,
	})

	assert.EqualError(t, err, "resource server/7 is in state off")
}

// With a deadline of 12s and a 5s interval, attempts start at 0s, 5s and
// 10s; the attempt at 15s is the first at or after the deadline and fails
// without describing.
func TestAwait_TimeoutExactness(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(start)
	rec := &countingRecorder{}
	describe, calls := sequence(status("starting"))

	_, err := newPoller(clock, rec).Await(context.Background(), Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   start.Add(12 * time.Second),
		Describe:   describe,
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, start.Add(15*time.Second), clock.Now())
	assert.Contains(t, err.Error(), "server/7")
	assert.Contains(t, err.Error(), `"running"`)
	assert.Contains(t, err.Error(), `last status "starting"`)
	assert.Equal(t, 1, rec.outcomes[OutcomeTimeout])
}

func TestAwait_DeadlineEqualToStartFailsImmediately(t *testing.T) {
	t.Parallel()

	describe, calls := sequence(status("running"))

	_, err := newPoller(NewFakeClock(start), nil).Await(context.Background(), Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   start,
		Describe:   describe,
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Zero(t, *calls)
}

func TestAwait_TransientUntilDeadline(t *testing.T) {
	t.Parallel()

	describe, calls := sequence(fail(hcloud_internal.NotFoundError("volume", 9)))

	_, err := newPoller(NewFakeClock(start), nil).Await(context.Background(), Request{
		ResourceID: "volume/9",
		Desired:    "available",
		Deadline:   start.Add(10 * time.Second),
		Describe:   describe,
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2, *calls)
}

func TestAwait_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Poller{Interval: time.Hour, IsTransient: hcloud_internal.IsNotYetVisible}
	_, err := p.Await(ctx, Request{
		ResourceID: "server/7",
		Desired:    "running",
		Deadline:   time.Now().Add(time.Hour),
		Describe:   func(context.Context) (Snapshot, error) { return Snapshot{Status: "starting"}, nil },
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_NoDescribe(t *testing.T) {
	t.Parallel()

	_, err := (&Poller{}).Await(context.Background(), Request{ResourceID: "x"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
