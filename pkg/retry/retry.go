package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Predicate decides whether an attempt's error deserves another try.
type Predicate func(error) bool

// Config bounds a retry loop. MaxAttempts counts the first call.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry is called before sleeping between two attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Do runs fn until it succeeds, the predicate rejects the error, the attempt
// cap is reached or ctx ends. fn receives the 1-based attempt number.
// It returns the number of attempts made together with the last error.
func Do(ctx context.Context, cfg Config, shouldRetry Predicate, fn func(attempt int) error) (int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if shouldRetry == nil {
		shouldRetry = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt - 1, err
		}

		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt == cfg.MaxAttempts || !shouldRetry(err) {
			return attempt, err
		}

		delay := Backoff(cfg.BaseDelay, cfg.MaxDelay, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if delay <= 0 {
			continue
		}
		if !sleep(ctx, delay) {
			return attempt, err
		}
	}

	return cfg.MaxAttempts, err
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Backoff returns a full-jitter exponential delay for the given attempt:
// a random duration in [0, min(max, base*2^(attempt-1))].
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	ceiling := base
	for i := 1; i < attempt; i++ {
		ceiling *= 2
		if max > 0 && ceiling >= max {
			ceiling = max
			break
		}
	}
	if max > 0 && ceiling > max {
		ceiling = max
	}

	rngMu.Lock()
	d := time.Duration(rng.Int63n(int64(ceiling) + 1))
	rngMu.Unlock()
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
