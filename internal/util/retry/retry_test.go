package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errThrottled = errors.New("slow down")

func fast() Option { return WithInitialDelay(time.Millisecond) }

func TestDo_Success(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errThrottled
		}
		return nil
	}, fast())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_BudgetSpent(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return errThrottled
	}, fast(), WithMaxRetries(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, errThrottled)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_NotRetryable(t *testing.T) {
	t.Parallel()

	denied := errors.New("access denied")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return denied
	}, fast(), WithRetryable(func(err error) bool { return errors.Is(err, errThrottled) }))
	assert.Equal(t, denied, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errThrottled
	}, WithInitialDelay(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled after 1 attempts")
	assert.Equal(t, 1, attempts)
}

func TestDo_DelayIsCapped(t *testing.T) {
	t.Parallel()

	var gaps []time.Duration
	last := time.Now()
	err := Do(context.Background(), func(context.Context) error {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		return errThrottled
	}, WithInitialDelay(2*time.Millisecond), WithMaxDelay(3*time.Millisecond), WithMaxRetries(3))
	require.Error(t, err)
	require.Len(t, gaps, 4)
	for _, g := range gaps[1:] {
		assert.Less(t, g, time.Second)
	}
}
