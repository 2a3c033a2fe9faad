package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/core/database"
	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/application"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/engine/repository"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopFetcher struct{}

func (nopFetcher) FetchFeed(ctx context.Context, feedRef string) ([]domain.Post, error) {
	return nil, nil
}

type okOrders struct{}

func (okOrders) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{OrderID: "42"}, nil
}

func (okOrders) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	return domain.OrderStatus{OrderID: orderID, Status: "Partial"}, nil
}

func newHandler(t *testing.T) *EngageHandler {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "engage.db"))
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	e := engine.New(config.EngineConfig{
		PollInterval:  time.Hour,
		OrderTimeout:  time.Second,
		RetryAttempts: 1,
	}, engine.Dependencies{
		Accounts:   repository.NewAccountGormRepository(db),
		Feeds:      repository.NewFeedGormRepository(db),
		Ledger:     repository.NewLedgerGormRepository(db),
		Actions:    repository.NewActionGormRepository(db),
		Executions: repository.NewExecutionGormRepository(db),
		Fetcher:    nopFetcher{},
		Orders:     okOrders{},
	})
	return InitMcpEngage(e)
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestPollNowReportsStoppedEngineAsToolError(t *testing.T) {
	h := newHandler(t)

	res, err := h.handlePollNow(context.Background(), call("feed_poll_now", map[string]any{"feed_id": "f1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPollNowRequiresFeedID(t *testing.T) {
	h := newHandler(t)

	_, err := h.handlePollNow(context.Background(), call("feed_poll_now", map[string]any{}))
	assert.Error(t, err)
}

func TestExecuteThenHistoryAndRefresh(t *testing.T) {
	h := newHandler(t)
	ctx := context.Background()

	detail, err := h.engine.Accounts().Create(ctx, domain.CreateAccountRequest{
		Platform: domain.PlatformTikTok,
		Handle:   "acme",
		FeedRef:  "https://rss.app/feeds/acme.xml",
	})
	require.NoError(t, err)
	spec, err := h.engine.Accounts().AddAction(ctx, detail.ID, domain.CreateActionRequest{
		Type:      domain.ActionView,
		Params:    []byte(`{"quantity":{"min":100}}`),
		ServiceID: 9,
	})
	require.NoError(t, err)

	res, err := h.handleExecute(ctx, call("action_execute", map[string]any{"action_id": spec.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	rec, ok := res.StructuredContent.(domain.ExecutionRecord)
	require.True(t, ok)
	assert.Equal(t, "42", rec.OrderID)

	res, err = h.handleHistory(ctx, call("execution_history", map[string]any{"platform": "tiktok", "limit": float64(5)}))
	require.NoError(t, err)
	page, ok := res.StructuredContent.(domain.HistoryPage)
	require.True(t, ok)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)

	res, err = h.handleRefresh(ctx, call("execution_refresh", map[string]any{"execution_id": rec.ID}))
	require.NoError(t, err)
	refreshed, ok := res.StructuredContent.(domain.ExecutionRecord)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPartial, refreshed.Status)

	res, err = h.handleRetry(ctx, call("execution_retry", map[string]any{"execution_id": rec.ID}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEngineStartStopTools(t *testing.T) {
	h := newHandler(t)
	ctx := context.Background()
	t.Cleanup(h.engine.Stop)

	res, err := h.handleEngineStart(ctx, call("engine_start", nil))
	require.NoError(t, err)
	status, ok := res.StructuredContent.(application.EngineStatus)
	require.True(t, ok)
	assert.True(t, status.Running)

	res, err = h.handlePollAll(ctx, call("feed_poll_all", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = h.handleEngineStop(ctx, call("engine_stop", nil))
	require.NoError(t, err)
	status, ok = res.StructuredContent.(application.EngineStatus)
	require.True(t, ok)
	assert.False(t, status.Running)

	res, err = h.handlePollAll(ctx, call("feed_poll_all", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSetFeedEnabledTool(t *testing.T) {
	h := newHandler(t)
	ctx := context.Background()

	detail, err := h.engine.Accounts().Create(ctx, domain.CreateAccountRequest{
		Platform: domain.PlatformX,
		Handle:   "acme",
		FeedRef:  "https://rss.app/feeds/acme-x.xml",
	})
	require.NoError(t, err)

	res, err := h.handleSetFeedEnabled(ctx, call("feed_set_enabled", map[string]any{"feed_id": detail.Feed.ID, "enabled": false}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	feed, ok := res.StructuredContent.(domain.Feed)
	require.True(t, ok)
	assert.False(t, feed.Enabled)

	res, err = h.handleSetFeedEnabled(ctx, call("feed_set_enabled", map[string]any{"feed_id": "missing", "enabled": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = h.handleSetFeedEnabled(ctx, call("feed_set_enabled", map[string]any{"feed_id": detail.Feed.ID}))
	assert.Error(t, err)
}
