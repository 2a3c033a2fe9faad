package application

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPastBaseline(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	baseline := domain.Baseline{Cutoff: cutoff, PostIDs: []string{"seen"}}

	tests := []struct {
		name string
		post domain.Post
		want bool
	}{
		{"newer than cutoff", post("new", at(cutoff.Add(time.Minute))), true},
		{"older than cutoff", post("old", at(cutoff.Add(-time.Minute))), false},
		{"exactly at cutoff", post("edge", at(cutoff)), false},
		{"undated and unseen", post("undated", nil), true},
		{"seen id wins over date", post("seen", at(cutoff.Add(time.Hour))), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPastBaseline(baseline, tt.post))
		})
	}
}

func TestBaselineTracker_EstablishOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "brand")

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	baseline, err := h.baseline.Establish(ctx, detail.Feed.ID, []domain.Post{post("a", at(t1)), post("b", at(t2)), post("c", nil)})
	require.NoError(t, err)
	assert.True(t, baseline.Cutoff.Equal(t2))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, baseline.PostIDs)

	_, err = h.baseline.Establish(ctx, detail.Feed.ID, []domain.Post{post("d", at(t2.Add(time.Hour)))})
	assert.ErrorIs(t, err, domain.ErrBaselineAlreadyEstablished)

	stored, ok, err := h.baseline.Get(ctx, detail.Feed.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Cutoff.Equal(t2), "the first baseline is kept")
}

func TestBaselineTracker_EmptyFeedUsesNow(t *testing.T) {
	h := newHarness(t)
	detail := h.createAccount(t, "quiet")
	fixed := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	h.baseline.now = func() time.Time { return fixed }

	baseline, err := h.baseline.Establish(context.Background(), detail.Feed.ID, nil)
	require.NoError(t, err)
	assert.True(t, baseline.Cutoff.Equal(fixed))
	assert.Empty(t, baseline.PostIDs)
}

func TestBaselineTracker_Reset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "resettable")

	_, err := h.baseline.Establish(ctx, detail.Feed.ID, nil)
	require.NoError(t, err)
	require.NoError(t, h.baseline.Reset(ctx, detail.Feed.ID))

	_, ok, err := h.baseline.Get(ctx, detail.Feed.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	feed, err := h.feeds.GetFeed(ctx, detail.Feed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedStatusPending, feed.Status)

	_, err = h.baseline.Establish(ctx, detail.Feed.ID, nil)
	assert.NoError(t, err)
}
