package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func onlyTransient(err error) bool { return errors.Is(err, errTransient) }

func fastConfig(max int) Config {
	return Config{MaxAttempts: max, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), onlyTransient, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), onlyTransient, func(int) error {
		calls++
		return errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RespectsAttemptCap(t *testing.T) {
	var retried []int
	cfg := fastConfig(4)
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errTransient)
	}

	calls := 0
	attempts, err := Do(context.Background(), cfg, onlyTransient, func(int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	calls := 0
	start := time.Now()
	attempts, err := Do(ctx, cfg, onlyTransient, func(int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_StaysWithinBounds(t *testing.T) {
	base := 10 * time.Millisecond
	max := 80 * time.Millisecond
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 20; i++ {
			d := Backoff(base, max, attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, max)
		}
	}
	assert.Equal(t, time.Duration(0), Backoff(0, max, 3))
}
