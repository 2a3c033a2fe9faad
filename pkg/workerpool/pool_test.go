package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_TryDispatchDoesNotBlock(t *testing.T) {
	pool := New("TEST_POOL", 2, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(Job{
		Key: "feed-1",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})

	assert.True(t, ok)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestPool_SameKeyRunsSequentially(t *testing.T) {
	pool := New("TEST_POOL", 4, 100)
	pool.Start(context.Background())
	defer pool.Stop()

	var mu sync.Mutex
	var results []int
	var wg sync.WaitGroup

	for i := 1; i <= 5; i++ {
		val := i
		wg.Add(1)
		require.True(t, pool.TryDispatch(Job{
			Key: "feed-1",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		}))
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_ConcurrencyNeverExceedsWorkers(t *testing.T) {
	const workers = 3
	pool := New("TEST_POOL", workers, 100)
	pool.Start(context.Background())
	defer pool.Stop()

	var current, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 30; i++ {
		wg.Add(1)
		key := "feed-" + string(rune('a'+i))
		require.True(t, pool.TryDispatch(Job{
			Key: key,
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			},
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, int(atomic.LoadInt32(&peak)), workers)
	assert.Equal(t, int64(30), pool.Stats().TotalProcessed)
}

func TestPool_FullQueueDropsJob(t *testing.T) {
	pool := New("TEST_POOL", 1, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	require.True(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error { return nil }}))
	assert.False(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error { return nil }}))
	close(release)

	assert.Equal(t, int64(1), pool.Stats().TotalDropped)
}

func TestPool_RecoversFromPanicsAndCountsErrors(t *testing.T) {
	pool := New("TEST_POOL", 1, 10)
	pool.Start(context.Background())

	var ended int32
	pool.OnJobEnd = func(workerID int, key string, err error) {
		atomic.AddInt32(&ended, 1)
	}

	pool.TryDispatch(Job{Key: "x", Handler: func(ctx context.Context) error { panic("boom") }})
	pool.TryDispatch(Job{Key: "x", Handler: func(ctx context.Context) error { return errors.New("failed") }})
	done := make(chan struct{})
	pool.TryDispatch(Job{Key: "x", Handler: func(ctx context.Context) error { close(done); return nil }})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ended))
}

func TestPool_DispatchAfterStopIsRejected(t *testing.T) {
	pool := New("TEST_POOL", 2, 10)
	pool.Start(context.Background())
	pool.Stop()

	assert.False(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error { return nil }}))
}
