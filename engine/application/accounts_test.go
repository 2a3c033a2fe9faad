package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	pkgError "github.com/AzielCF/az-engage/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_CreateAndActivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	detail := h.createAccount(t, "@launch")
	assert.Equal(t, "launch", detail.Handle)
	require.NotNil(t, detail.Feed)
	assert.Equal(t, domain.FeedStatusPending, detail.Feed.Status)

	_, err := h.svc.Create(ctx, domain.CreateAccountRequest{
		Platform: domain.PlatformInstagram,
		Handle:   "LAUNCH",
		FeedRef:  "https://rss.app/feeds/other.xml",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)

	h.fetcher.set([]domain.Post{post("a", at(t0))}, nil)
	baseline, err := h.svc.ActivateFeed(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, baseline.PostIDs)

	got, err := h.svc.Get(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedStatusActive, got.Feed.Status)

	_, err = h.svc.ActivateFeed(ctx, detail.ID)
	assert.ErrorIs(t, err, domain.ErrBaselineAlreadyEstablished)

	require.NoError(t, h.svc.ResetFeed(ctx, detail.ID))
	_, err = h.svc.ActivateFeed(ctx, detail.ID)
	assert.NoError(t, err)
}

func TestAccountService_CreateValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), domain.CreateAccountRequest{Platform: "orkut", Handle: "x"})
	assert.IsType(t, pkgError.ValidationError(""), err)
}

func TestAccountService_UpdateFeedRefResetsBaseline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "moving")

	_, err := h.baseline.Establish(ctx, detail.Feed.ID, nil)
	require.NoError(t, err)

	newRef := "https://rss.app/feeds/moved.xml"
	name := "Moving Co"
	account, err := h.svc.Update(ctx, detail.ID, domain.UpdateAccountRequest{FeedRef: &newRef, DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Moving Co", account.DisplayName)

	feed, err := h.feeds.GetFeedByAccount(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, newRef, feed.FeedRef)
	assert.Equal(t, domain.FeedStatusPending, feed.Status)

	_, ok, err := h.baseline.Get(ctx, detail.Feed.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountService_Actions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "acts")

	_, err := h.svc.AddAction(ctx, detail.ID, domain.CreateActionRequest{
		Type:      domain.ActionComment,
		Params:    json.RawMessage(`{"quantity":{"min":3},"strategy":"manual"}`),
		ServiceID: 5,
	})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr, "manual strategy without comments is rejected")

	first := h.addAction(t, detail.ID, domain.ActionLike, 10, likeParams(100))
	time.Sleep(time.Millisecond)
	second := h.addAction(t, detail.ID, domain.ActionFollow, 11, likeParams(20))

	require.NoError(t, h.svc.SetActionActive(ctx, first.ID, false))
	active, err := h.registry.ActionsFor(ctx, detail.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := h.svc.ListActions(ctx, detail.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	require.NoError(t, h.svc.DeleteAction(ctx, second.ID))
	_, err = h.svc.AddAction(ctx, "missing", domain.CreateActionRequest{Type: domain.ActionLike, Params: json.RawMessage(`{"quantity":{"min":1}}`), ServiceID: 1})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountService_DeleteCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "gone")
	spec := h.addAction(t, detail.ID, domain.ActionLike, 10, likeParams(100))

	require.NoError(t, h.svc.Delete(ctx, detail.ID))

	_, err := h.svc.Get(ctx, detail.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	action, err := h.registry.Get(ctx, spec.ID)
	require.NoError(t, err)
	assert.False(t, action.Active)

	again := h.createAccount(t, "gone")
	assert.NotEqual(t, detail.ID, again.ID)
}

func TestAccountService_ProvisionsHostedFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prov := &fakeProvisioner{}
	svc := h.withProvisioner(prov)

	detail, err := svc.Create(ctx, domain.CreateAccountRequest{Platform: domain.PlatformTikTok, Handle: "acme"})
	require.NoError(t, err)
	require.NotNil(t, detail.Feed)
	assert.Equal(t, "https://rss.app/feeds/rss-acme-1.xml", detail.Feed.FeedRef)
	assert.Equal(t, "rss-acme-1", detail.Feed.ExternalID)
	assert.Equal(t, domain.FeedStatusPending, detail.Feed.Status)

	stored, err := h.feeds.GetFeedByAccount(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.Feed.FeedRef, stored.FeedRef)
	assert.Equal(t, "rss-acme-1", stored.ExternalID)

	explicit, err := svc.Create(ctx, domain.CreateAccountRequest{
		Platform: domain.PlatformX,
		Handle:   "own",
		FeedRef:  "https://example.com/own.xml",
	})
	require.NoError(t, err)
	assert.Empty(t, explicit.Feed.ExternalID)
	assert.Equal(t, []string{"rss-acme-1"}, prov.created)

	require.NoError(t, svc.Delete(ctx, explicit.ID))
	require.NoError(t, svc.Delete(ctx, detail.ID))
	assert.Equal(t, []string{"rss-acme-1"}, prov.deleted)
}

func TestAccountService_ProvisioningFailureMarksFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prov := &fakeProvisioner{err: &domain.FetchError{Kind: domain.Transient, FeedRef: "https://api.rss.app/v1/feeds", Err: errors.New("http 502")}}
	svc := h.withProvisioner(prov)

	detail, err := svc.Create(ctx, domain.CreateAccountRequest{Platform: domain.PlatformInstagram, Handle: "flaky"})
	require.NoError(t, err)
	assert.Equal(t, domain.FeedStatusError, detail.Feed.Status)
	assert.Contains(t, detail.Feed.LastError, "http 502")

	stored, err := h.feeds.GetFeedByAccount(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedStatusError, stored.Status)
	assert.Empty(t, stored.FeedRef)

	h.addAction(t, detail.ID, domain.ActionLike, 10, likeParams(100))
	eligible, err := h.feeds.ListEligibleFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible, "a feed without url is never polled")

	_, err = svc.ActivateFeed(ctx, detail.ID)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	prov.err = nil
	feed, err := svc.ProvisionFeed(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedStatusPending, feed.Status)
	assert.Empty(t, feed.LastError)
	assert.Equal(t, "rss-flaky-1", feed.ExternalID)

	feed, err = svc.ProvisionFeed(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, "rss-flaky-2", feed.ExternalID)
	assert.Equal(t, []string{"rss-flaky-1"}, prov.deleted)

	eligible, err = h.feeds.ListEligibleFeeds(ctx)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}

func TestAccountService_ProvisionFeedRequiresProvider(t *testing.T) {
	h := newHarness(t)
	detail := h.createAccount(t, "manual")

	_, err := h.svc.ProvisionFeed(context.Background(), detail.ID)
	assert.ErrorIs(t, err, domain.ErrProvisioningDisabled)

	_, err = h.svc.Create(context.Background(), domain.CreateAccountRequest{Platform: domain.PlatformX, Handle: "nofeed"})
	assert.IsType(t, pkgError.ValidationError(""), err)
}

func TestAccountService_SetFeedEnabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "toggle")
	h.addAction(t, detail.ID, domain.ActionLike, 10, likeParams(100))

	feed, err := h.svc.SetFeedEnabled(ctx, detail.Feed.ID, false)
	require.NoError(t, err)
	assert.False(t, feed.Enabled)
	eligible, err := h.feeds.ListEligibleFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	feed, err = h.svc.SetFeedEnabled(ctx, detail.Feed.ID, true)
	require.NoError(t, err)
	assert.True(t, feed.Enabled)
	eligible, err = h.feeds.ListEligibleFeeds(ctx)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)

	_, err = h.svc.SetFeedEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrFeedNotFound)
}

func TestAccountService_Tags(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detail := h.createAccount(t, "tagged")

	tag, err := h.svc.CreateTag(ctx, domain.Tag{Name: " vip "})
	require.NoError(t, err)
	assert.Equal(t, "vip", tag.Name)
	assert.Equal(t, "#6B7280", tag.Color)

	require.NoError(t, h.svc.SetTags(ctx, detail.ID, []string{tag.ID}))
	list, err := h.svc.List(ctx, domain.AccountFilter{TagID: tag.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, detail.ID, list[0].ID)

	assert.ErrorIs(t, h.svc.SetTags(ctx, "missing", nil), domain.ErrAccountNotFound)
}
