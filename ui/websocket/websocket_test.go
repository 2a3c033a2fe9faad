package websocket

import (
	"context"
	"testing"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooksQueueBroadcasts(t *testing.T) {
	h := NewHub(nil, "node-1")

	h.CycleHook(context.Background(), domain.CycleResult{FeedID: "f1", Status: domain.PollSuccess, NewPosts: 2})
	h.ExecutionHook(context.Background(), domain.ExecutionRecord{ID: "e1", Status: domain.StatusFailed})

	first := <-h.broadcast
	assert.Equal(t, CodePollCycle, first.Code)
	assert.Equal(t, "success", first.Message)
	cycle, ok := first.Result.(domain.CycleResult)
	require.True(t, ok)
	assert.Equal(t, 2, cycle.NewPosts)

	second := <-h.broadcast
	assert.Equal(t, CodeExecution, second.Code)
	assert.Equal(t, "failed", second.Message)
}

func TestPublishDropsWhenSaturated(t *testing.T) {
	h := NewHub(nil, "")

	for i := 0; i < broadcastBuffer; i++ {
		require.True(t, h.Publish(BroadcastMessage{Code: CodeExecution}))
	}
	assert.False(t, h.Publish(BroadcastMessage{Code: CodeExecution}))
}

func TestRunStopsWithContext(t *testing.T) {
	h := NewHub(nil, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	h.Publish(BroadcastMessage{Code: CodePollCycle})
	cancel()
	<-done
}
