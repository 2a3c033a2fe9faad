package application

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchSetup(t *testing.T, h *harness) (domain.Account, domain.Feed, domain.ActionSpec) {
	t.Helper()
	detail := h.createAccount(t, "dispatch")
	spec := h.addAction(t, detail.ID, domain.ActionLike, 10, likeParams(100))
	return detail.Account, *detail.Feed, spec
}

func TestDispatch_TransientTwiceThenSuccess(t *testing.T) {
	h := newHarness(t)
	account, feed, spec := dispatchSetup(t, h)
	h.orders.queued[10] = []error{transientErr, transientErr}

	p := post("p1", nil)
	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{
		Account: account, Feed: &feed, Post: &p, Action: spec, Kind: domain.KindFeedTrigger,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, h.orders.callCount())
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.NotEmpty(t, rec.OrderID)
	assert.Equal(t, p.URL, rec.TargetURL)
	assert.Equal(t, 100, rec.Quantity)

	page, err := h.recorder.History(context.Background(), domain.HistoryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total, "exactly one record per dispatch")
}

func TestDispatch_PermanentFailureStopsAfterOneAttempt(t *testing.T) {
	h := newHarness(t)
	account, _, spec := dispatchSetup(t, h)
	h.orders.always[10] = permanentErr

	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.Error(t, err)

	assert.Equal(t, 1, h.orders.callCount())
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, domain.ErrorClassPermanent, rec.ErrorClass)
	assert.Contains(t, rec.ErrorMessage, "Not enough funds")

	stored, err := h.recorder.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestDispatch_RetryCapExhausted(t *testing.T) {
	h := newHarness(t)
	account, _, spec := dispatchSetup(t, h)
	h.orders.always[10] = transientErr

	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.Error(t, err)
	assert.Equal(t, 3, h.orders.callCount())
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, domain.ErrorClassTransient, rec.ErrorClass)
}

func TestDispatch_InvalidSpecMakesNoCall(t *testing.T) {
	h := newHarness(t)
	account, _, spec := dispatchSetup(t, h)
	spec.ServiceID = 0

	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, h.orders.callCount())
	assert.Equal(t, domain.ErrorClassConfig, rec.ErrorClass)
}

func TestDispatch_FallsBackToProfileLink(t *testing.T) {
	h := newHarness(t)
	account, _, spec := dispatchSetup(t, h)

	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.NoError(t, err)
	assert.Equal(t, "https://instagram.com/dispatch", rec.TargetURL)
	assert.Equal(t, rec.TargetURL, h.orders.lastRequest().Link)

	rec, err = h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant, Link: "https://www.instagram.com/p/override/"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/p/override/", rec.TargetURL)
}

func TestDispatch_RandomQuantityStaysInRange(t *testing.T) {
	h := newHarness(t)
	detail := h.createAccount(t, "ranged")
	spec := h.addAction(t, detail.ID, domain.ActionView, 11, map[string]any{"quantity": map[string]any{"min": 50, "max": 60}})

	for i := 0; i < 10; i++ {
		rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: detail.Account, Action: spec, Kind: domain.KindInstant})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rec.Quantity, 50)
		assert.LessOrEqual(t, rec.Quantity, 60)
	}
}

func TestDispatch_CommentsDriveQuantity(t *testing.T) {
	h := newHarness(t)
	detail := h.createAccount(t, "commented")
	spec := h.addAction(t, detail.ID, domain.ActionComment, 12, map[string]any{
		"quantity":        map[string]any{"min": 5},
		"strategy":        "manual",
		"manual_comments": []string{"Love this", "So good"},
	})

	rec, err := h.dispatcher.Dispatch(context.Background(), DispatchRequest{Account: detail.Account, Action: spec, Kind: domain.KindInstant})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Quantity)
	assert.Equal(t, 2, rec.CommentsCount)
	assert.Equal(t, []string{"Love this", "So good"}, h.orders.lastRequest().Comments)
}

func TestResolveComments(t *testing.T) {
	h := newHarness(t)
	manual := domain.ActionSpec{Type: domain.ActionComment, Params: domain.CommentParams{
		Quantity: domain.Fixed(2),
		Strategy: domain.CommentAI,
		Manual:   []string{"fallback one", "fallback two", "fallback three"},
	}}
	subject := CommentSubject{Platform: domain.PlatformInstagram, URL: "https://www.instagram.com/p/x/"}

	t.Run("ai success", func(t *testing.T) {
		h.generator.comments = []string{"ai one", "ai two", "ai three"}
		got := h.registry.ResolveComments(context.Background(), manual, subject, 2)
		assert.Equal(t, []string{"ai one", "ai two"}, got)
	})

	t.Run("ai timeout falls back to manual", func(t *testing.T) {
		h.generator.block = true
		defer func() { h.generator.block = false }()

		start := time.Now()
		got := h.registry.ResolveComments(context.Background(), manual, subject, 2)
		assert.Equal(t, []string{"fallback one", "fallback two"}, got)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("ai error without manual list", func(t *testing.T) {
		h.generator.comments = nil
		h.generator.err = &domain.GenError{Provider: "fake", Err: assert.AnError}
		defer func() { h.generator.err = nil }()

		spec := domain.ActionSpec{Type: domain.ActionComment, Params: domain.CommentParams{Quantity: domain.Fixed(2), Strategy: domain.CommentAI}}
		assert.Nil(t, h.registry.ResolveComments(context.Background(), spec, subject, 2))
	})

	t.Run("strategy none", func(t *testing.T) {
		spec := domain.ActionSpec{Type: domain.ActionComment, Params: domain.CommentParams{Quantity: domain.Fixed(2), Strategy: domain.CommentNone}}
		assert.Nil(t, h.registry.ResolveComments(context.Background(), spec, subject, 2))
	})
}

func TestRecorder_Refresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account, _, spec := dispatchSetup(t, h)

	rec, err := h.dispatcher.Dispatch(ctx, DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.NoError(t, err)

	charge := 1.5
	remains := 0
	h.orders.statuses[rec.OrderID] = domain.OrderStatus{OrderID: rec.OrderID, Status: "Completed", Charge: &charge, Remains: &remains}

	refreshed, err := h.recorder.Refresh(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, refreshed.Status)
	require.NotNil(t, refreshed.Cost)
	assert.InDelta(t, 1.5, *refreshed.Cost, 0.0001)
	require.NotNil(t, refreshed.RefreshedAt)

	// Terminal records are left alone.
	h.orders.statuses[rec.OrderID] = domain.OrderStatus{OrderID: rec.OrderID, Status: "Canceled"}
	again, err := h.recorder.Refresh(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, again.Status)

	h.orders.always[10] = permanentErr
	failed, _ := h.dispatcher.Dispatch(ctx, DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	_, err = h.recorder.Refresh(ctx, failed.ID)
	assert.ErrorIs(t, err, domain.ErrNoOrderID)
}

func TestRecorder_RefreshAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account, _, spec := dispatchSetup(t, h)

	first, err := h.dispatcher.Dispatch(ctx, DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.NoError(t, err)
	_, err = h.dispatcher.Dispatch(ctx, DispatchRequest{Account: account, Action: spec, Kind: domain.KindInstant})
	require.NoError(t, err)

	h.orders.statuses[first.OrderID] = domain.OrderStatus{OrderID: first.OrderID, Status: "Partial"}

	summary, err := h.recorder.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Refreshed, 2)
	for _, rec := range summary.Refreshed {
		if rec.ID == first.ID {
			assert.Equal(t, domain.StatusPartial, rec.Status)
		}
		assert.NotNil(t, rec.RefreshedAt)
	}

	stored, err := h.recorder.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, stored.Status)
}

func TestInstantRunner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, spec := dispatchSetup(t, h)

	rec, err := h.instant.Execute(ctx, domain.InstantRequest{ActionID: spec.ID, Link: "https://www.instagram.com/p/manual/"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindInstant, rec.Kind)
	assert.Equal(t, "https://www.instagram.com/p/manual/", rec.TargetURL)

	_, err = h.instant.Retry(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotRetryable)

	h.orders.always[10] = permanentErr
	failed, err := h.instant.Execute(ctx, domain.InstantRequest{ActionID: spec.ID, Link: "https://www.instagram.com/p/again/"})
	require.Error(t, err)

	delete(h.orders.always, 10)
	retried, err := h.instant.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, retried.ID)
	assert.Equal(t, "https://www.instagram.com/p/again/", retried.TargetURL)
	assert.Equal(t, domain.StatusPending, retried.Status)

	_, err = h.instant.Execute(ctx, domain.InstantRequest{ActionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}
