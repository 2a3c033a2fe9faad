package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// EngageHandler exposes feed polling and execution history to MCP agents.
type EngageHandler struct {
	engine *engine.Engine
}

func InitMcpEngage(e *engine.Engine) *EngageHandler {
	return &EngageHandler{engine: e}
}

func (h *EngageHandler) AddEngageTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolPollNow(), h.handlePollNow)
	mcpServer.AddTool(h.toolPollAll(), h.handlePollAll)
	mcpServer.AddTool(h.toolFeedStatus(), h.handleFeedStatus)
	mcpServer.AddTool(h.toolHistory(), h.handleHistory)
	mcpServer.AddTool(h.toolRefresh(), h.handleRefresh)
	mcpServer.AddTool(h.toolExecute(), h.handleExecute)
	mcpServer.AddTool(h.toolRetry(), h.handleRetry)
	mcpServer.AddTool(h.toolStatus(), h.handleStatus)
	mcpServer.AddTool(h.toolSetFeedEnabled(), h.handleSetFeedEnabled)
	mcpServer.AddTool(h.toolEngineStart(), h.handleEngineStart)
	mcpServer.AddTool(h.toolEngineStop(), h.handleEngineStop)
}

func (h *EngageHandler) toolPollNow() mcp.Tool {
	return mcp.NewTool(
		"feed_poll_now",
		mcp.WithDescription("Queue an immediate poll of one feed. New posts trigger the account's active actions."),
		mcp.WithTitleAnnotation("Poll Feed Now"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("feed_id",
			mcp.Description("Identifier of the feed to poll."),
			mcp.Required(),
		),
	)
}

func (h *EngageHandler) handlePollNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	feedID, err := request.RequireString("feed_id")
	if err != nil {
		return nil, err
	}
	if err := h.engine.TriggerPollNow(ctx, feedID); err != nil {
		if errors.Is(err, domain.ErrFeedBusy) || errors.Is(err, domain.ErrQueueFull) || errors.Is(err, domain.ErrEngineDisabled) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Poll of feed %s queued", feedID)), nil
}

func (h *EngageHandler) toolPollAll() mcp.Tool {
	return mcp.NewTool(
		"feed_poll_all",
		mcp.WithDescription("Queue a poll of every eligible feed without waiting for the next tick."),
		mcp.WithTitleAnnotation("Poll All Feeds"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
	)
}

func (h *EngageHandler) handlePollAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request
	summary, err := h.engine.TriggerPollAll(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrEngineDisabled) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	fallback := fmt.Sprintf("Queued %d of %d eligible feeds (%d already busy, %d dropped)",
		summary.Queued, summary.Eligible, summary.Skipped, summary.Dropped)
	return mcp.NewToolResultStructured(summary, fallback), nil
}

func (h *EngageHandler) toolFeedStatus() mcp.Tool {
	return mcp.NewTool(
		"feed_status",
		mcp.WithDescription("Show the last check, baseline and recent poll cycles of a feed."),
		mcp.WithTitleAnnotation("Feed Status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("feed_id",
			mcp.Description("Identifier of the feed."),
			mcp.Required(),
		),
	)
}

func (h *EngageHandler) handleFeedStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	feedID, err := request.RequireString("feed_id")
	if err != nil {
		return nil, err
	}
	view, err := h.engine.GetFeedStatus(ctx, feedID)
	if err != nil {
		return nil, err
	}

	checked := "never checked"
	if view.LastCheckedAt != nil {
		checked = "checked " + humanize.Time(*view.LastCheckedAt)
	}
	fallback := fmt.Sprintf("Feed %s is %s (%s, %s)", view.FeedID, view.Status, view.State, checked)
	return mcp.NewToolResultStructured(view, fallback), nil
}

func (h *EngageHandler) toolHistory() mcp.Tool {
	return mcp.NewTool(
		"execution_history",
		mcp.WithDescription("List dispatched actions, newest first."),
		mcp.WithTitleAnnotation("Execution History"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("platform", mcp.Description("Only executions for this platform (instagram, facebook, x, tiktok, other).")),
		mcp.WithString("kind", mcp.Description("feed_trigger or instant.")),
		mcp.WithString("status", mcp.Description("pending, completed, partial or failed.")),
		mcp.WithString("account_id", mcp.Description("Only executions of this account.")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 500."), mcp.DefaultNumber(domain.DefaultHistoryLimit)),
		mcp.WithNumber("offset", mcp.Description("Records to skip."), mcp.DefaultNumber(0)),
	)
}

func (h *EngageHandler) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := domain.HistoryFilter{
		Platform:  domain.Platform(request.GetString("platform", "")),
		Kind:      domain.ExecutionKind(request.GetString("kind", "")),
		Status:    domain.ExecutionStatus(request.GetString("status", "")),
		AccountID: request.GetString("account_id", ""),
		Limit:     request.GetInt("limit", domain.DefaultHistoryLimit),
		Offset:    request.GetInt("offset", 0),
	}
	page, err := h.engine.GetExecutionHistory(ctx, filter)
	if err != nil {
		return nil, err
	}
	fallback := fmt.Sprintf("Showing %d of %s executions", len(page.Items), humanize.Comma(page.Total))
	return mcp.NewToolResultStructured(page, fallback), nil
}

func (h *EngageHandler) toolRefresh() mcp.Tool {
	return mcp.NewTool(
		"execution_refresh",
		mcp.WithDescription("Ask the order provider for the current status of one execution, or of every pending one when no id is given."),
		mcp.WithTitleAnnotation("Refresh Execution Status"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("execution_id", mcp.Description("Execution to refresh. Leave empty to refresh all pending executions.")),
	)
}

func (h *EngageHandler) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("execution_id", "")
	if id == "" {
		summary, err := h.engine.RefreshAllExecutions(ctx)
		if err != nil {
			return nil, err
		}
		fallback := fmt.Sprintf("Checked %d pending executions, %d updated, %d failed", summary.Checked, summary.Updated, summary.Failed)
		return mcp.NewToolResultStructured(summary, fallback), nil
	}

	rec, err := h.engine.RefreshExecutionStatus(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoOrderID) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	fallback := fmt.Sprintf("Execution %s is %s", rec.ID, rec.Status)
	return mcp.NewToolResultStructured(rec, fallback), nil
}

func (h *EngageHandler) toolExecute() mcp.Tool {
	return mcp.NewTool(
		"action_execute",
		mcp.WithDescription("Fire a configured action immediately, against a given link or the account profile."),
		mcp.WithTitleAnnotation("Execute Action"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("action_id",
			mcp.Description("Identifier of the configured action."),
			mcp.Required(),
		),
		mcp.WithString("link", mcp.Description("Target URL. Defaults to the account profile.")),
	)
}

func (h *EngageHandler) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actionID, err := request.RequireString("action_id")
	if err != nil {
		return nil, err
	}
	rec, err := h.engine.ExecuteInstant(ctx, domain.InstantRequest{
		ActionID: actionID,
		Link:     request.GetString("link", ""),
	})
	return dispatchResult(rec, err)
}

func (h *EngageHandler) toolRetry() mcp.Tool {
	return mcp.NewTool(
		"execution_retry",
		mcp.WithDescription("Re-dispatch a failed execution to the same target. A new execution is recorded."),
		mcp.WithTitleAnnotation("Retry Execution"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("execution_id",
			mcp.Description("Identifier of the failed execution."),
			mcp.Required(),
		),
	)
}

func (h *EngageHandler) handleRetry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("execution_id")
	if err != nil {
		return nil, err
	}
	rec, err := h.engine.RetryExecution(ctx, id)
	return dispatchResult(rec, err)
}

func dispatchResult(rec domain.ExecutionRecord, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if rec.ID == "" && !errors.Is(err, domain.ErrNotRetryable) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	fallback := fmt.Sprintf("Order %s placed for %s (%d x %s)", rec.OrderID, rec.TargetURL, rec.Quantity, rec.ActionType)
	return mcp.NewToolResultStructured(rec, fallback), nil
}

func (h *EngageHandler) toolStatus() mcp.Tool {
	return mcp.NewTool(
		"engine_status",
		mcp.WithDescription("Report whether polling runs, when it last ticked and what happened during the last hour."),
		mcp.WithTitleAnnotation("Engine Status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *EngageHandler) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request
	status, err := h.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(status, status.Summary), nil
}

func (h *EngageHandler) toolSetFeedEnabled() mcp.Tool {
	return mcp.NewTool(
		"feed_set_enabled",
		mcp.WithDescription("Pause or resume monitoring of one feed. The account and its actions are left untouched."),
		mcp.WithTitleAnnotation("Enable or Disable Feed"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("feed_id",
			mcp.Description("Identifier of the feed."),
			mcp.Required(),
		),
		mcp.WithBoolean("enabled",
			mcp.Description("true to poll the feed, false to pause it."),
			mcp.Required(),
		),
	)
}

func (h *EngageHandler) handleSetFeedEnabled(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	feedID, err := request.RequireString("feed_id")
	if err != nil {
		return nil, err
	}
	enabled, err := request.RequireBool("enabled")
	if err != nil {
		return nil, err
	}
	feed, err := h.engine.Accounts().SetFeedEnabled(ctx, feedID, enabled)
	if err != nil {
		if errors.Is(err, domain.ErrFeedNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	state := "paused"
	if feed.Enabled {
		state = "enabled"
	}
	return mcp.NewToolResultStructured(feed, fmt.Sprintf("Feed %s %s", feed.ID, state)), nil
}

func (h *EngageHandler) toolEngineStart() mcp.Tool {
	return mcp.NewTool(
		"engine_start",
		mcp.WithDescription("Start the poll timer. Does nothing when polling already runs."),
		mcp.WithTitleAnnotation("Start Engine"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *EngageHandler) handleEngineStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request
	started := h.engine.StartPolling()
	status, err := h.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	fallback := "Polling started"
	if !started {
		fallback = "Polling was already running"
	}
	return mcp.NewToolResultStructured(status, fallback), nil
}

func (h *EngageHandler) toolEngineStop() mcp.Tool {
	return mcp.NewTool(
		"engine_stop",
		mcp.WithDescription("Stop the poll timer and wait for running cycles. Instant executions keep working."),
		mcp.WithTitleAnnotation("Stop Engine"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *EngageHandler) handleEngineStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request
	stopped := h.engine.StopPolling()
	status, err := h.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	fallback := "Polling stopped"
	if !stopped {
		fallback = "Polling was not running"
	}
	return mcp.NewToolResultStructured(status, fallback), nil
}
