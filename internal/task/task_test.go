package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnce_FirstCallWins(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	once := &Once{Next: rec, Logger: testr.New(t)}
	ctx := context.Background()

	require.NoError(t, once.Fail(ctx, "tasks/1", errors.New("boom")))
	require.NoError(t, once.Finish(ctx, "tasks/1"))
	require.NoError(t, once.Fail(ctx, "tasks/1", errors.New("again")))

	finishes, fails := rec.Counts()
	assert.Equal(t, 0, finishes)
	assert.Equal(t, 1, fails)
	require.Len(t, rec.Outcomes(), 1)
	assert.EqualError(t, rec.Outcomes()[0].Err, "boom")
}

func TestOnce_Concurrent(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	once := &Once{Next: rec, Logger: logr.Discard()}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = once.Finish(context.Background(), "tasks/1")
				return
			}
			_ = once.Fail(context.Background(), "tasks/1", errors.New("boom"))
		}()
	}
	wg.Wait()

	finishes, fails := rec.Counts()
	assert.Equal(t, 1, finishes+fails)
}

func TestRecorder_Done(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	select {
	case <-rec.Done():
		t.Fatal("done before any outcome")
	default:
	}

	require.NoError(t, rec.Finish(context.Background(), "tasks/1"))
	<-rec.Done()
	assert.True(t, rec.Outcomes()[0].Succeeded())

	require.NoError(t, rec.Fail(context.Background(), "tasks/2", nil))
	assert.ErrorContains(t, rec.Outcomes()[1].Err, "without a cause")
}

type failingNotifier struct{}

func (failingNotifier) Finish(context.Context, string) error {
	return errors.New("finish unavailable")
}

func (failingNotifier) Fail(context.Context, string, error) error {
	return errors.New("fail unavailable")
}

func TestMulti(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	multi := Multi{rec, LogNotifier{Logger: testr.New(t)}, failingNotifier{}}

	err := multi.Finish(context.Background(), "tasks/1")
	assert.ErrorContains(t, err, "finish unavailable")

	err = multi.Fail(context.Background(), "tasks/2", errors.New("boom"))
	assert.ErrorContains(t, err, "fail unavailable")

	finishes, fails := rec.Counts()
	assert.Equal(t, 1, finishes)
	assert.Equal(t, 1, fails)
	assert.NoError(t, Multi{rec}.Finish(context.Background(), "tasks/3"))
}
