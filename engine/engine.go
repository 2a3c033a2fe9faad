package engine

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/engine/application"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/pkg/retry"
	"github.com/AzielCF/az-engage/validations"
	"github.com/sirupsen/logrus"
)

// ExecutionHook observes every execution record the engine creates or
// refreshes, whatever the trigger.
type ExecutionHook func(ctx context.Context, rec domain.ExecutionRecord)

// Dependencies are the adapters the engine runs on. Catalog, Generator,
// Lease and Provisioner are optional.
type Dependencies struct {
	Accounts   domain.IAccountRepository
	Feeds      domain.IFeedRepository
	Ledger     domain.ILedgerRepository
	Actions    domain.IActionRepository
	Executions domain.IExecutionRepository

	Fetcher     domain.FeedFetcher
	Orders      domain.OrderClient
	Catalog     domain.ServiceCatalog
	Generator   domain.CommentGenerator
	Lease       domain.FeedLease
	Provisioner domain.FeedProvisioner
}

// Engine is the entry point the transports (REST, MCP, CLI) talk to.
type Engine struct {
	cfg         config.EngineConfig
	feeds       domain.IFeedRepository
	catalog     domain.ServiceCatalog
	provisioner domain.FeedProvisioner

	baseline   *application.BaselineTracker
	ledger     *application.Ledger
	registry   *application.Registry
	recorder   *application.Recorder
	dispatcher *application.Dispatcher
	orch       *application.Orchestrator
	accounts   *application.AccountService
	instant    *application.InstantRunner

	mu          sync.RWMutex
	onExecution []ExecutionHook

	lifecycle     sync.Mutex
	baseCtx       context.Context
	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
}

func New(cfg config.EngineConfig, deps Dependencies) *Engine {
	e := &Engine{cfg: cfg, feeds: deps.Feeds, catalog: deps.Catalog, provisioner: deps.Provisioner}

	e.baseline = application.NewBaselineTracker(deps.Feeds)
	e.ledger = application.NewLedger(deps.Ledger)
	e.registry = application.NewRegistry(deps.Actions, deps.Generator, cfg.CommentTimeout)
	e.recorder = application.NewRecorder(deps.Executions, deps.Orders)
	e.dispatcher = application.NewDispatcher(deps.Orders, e.registry, e.recorder, application.DispatcherConfig{
		OrderTimeout: cfg.OrderTimeout,
		Retry: retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	})
	e.orch = application.NewOrchestrator(application.OrchestratorConfig{
		PollInterval:   cfg.PollInterval,
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		FetchTimeout:   cfg.FetchTimeout,
		FetchAttempts:  cfg.FetchAttempts,
		FeedDeadline:   cfg.FeedDeadline,
		LeaseTTL:       cfg.LeaseTTL,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, deps.Accounts, deps.Feeds, deps.Fetcher, e.baseline, e.ledger, e.registry, e.dispatcher, deps.Lease)
	e.accounts = application.NewAccountService(deps.Accounts, deps.Feeds, e.registry, e.baseline, deps.Fetcher, deps.Provisioner, cfg.FetchTimeout)
	e.instant = application.NewInstantRunner(deps.Accounts, e.registry, e.dispatcher, e.recorder)

	e.orch.RegisterCycleHook(func(ctx context.Context, result domain.CycleResult) {
		for _, rec := range result.Executions {
			e.fireExecution(ctx, rec)
		}
	})
	return e
}

// Start launches polling and, when configured, the periodic status refresh.
// A disabled engine still serves reads and instant executions. ctx bounds
// every later StartPolling as well.
func (e *Engine) Start(ctx context.Context) {
	e.lifecycle.Lock()
	e.baseCtx = ctx
	e.lifecycle.Unlock()

	if !e.cfg.Enabled {
		logrus.Warn("[ENGINE] Polling disabled by configuration")
		return
	}
	e.StartPolling()
}

// StartPolling starts the poll timer on demand, also when configuration kept
// it off at boot. It reports false when polling was already running.
func (e *Engine) StartPolling() bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.orch.Running() {
		return false
	}

	ctx := e.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	e.orch.Start(ctx)

	if e.cfg.RefreshEvery > 0 {
		refreshCtx, cancel := context.WithCancel(ctx)
		e.refreshCancel = cancel
		e.refreshDone = make(chan struct{})
		go e.refreshLoop(refreshCtx)
	}
	return true
}

// StopPolling halts the timer and waits for in-flight cycles. Reads, instant
// executions and refreshes keep working. It reports false when polling was
// not running.
func (e *Engine) StopPolling() bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.refreshCancel != nil {
		e.refreshCancel()
		<-e.refreshDone
		e.refreshCancel = nil
	}
	if !e.orch.Running() {
		return false
	}
	e.orch.Stop()
	return true
}

func (e *Engine) Stop() {
	e.StopPolling()
}

func (e *Engine) refreshLoop(ctx context.Context) {
	defer close(e.refreshDone)
	ticker := time.NewTicker(e.cfg.RefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.RefreshAllExecutions(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Warn("[ENGINE] Periodic refresh failed")
			}
		}
	}
}

func (e *Engine) RegisterCycleHook(fn application.CycleHook) {
	e.orch.RegisterCycleHook(fn)
}

func (e *Engine) RegisterExecutionHook(fn ExecutionHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExecution = append(e.onExecution, fn)
}

func (e *Engine) fireExecution(ctx context.Context, rec domain.ExecutionRecord) {
	e.mu.RLock()
	hooks := append([]ExecutionHook(nil), e.onExecution...)
	e.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, rec)
	}
}

func (e *Engine) Accounts() *application.AccountService {
	return e.accounts
}

// TriggerPollNow queues an immediate poll of one feed.
func (e *Engine) TriggerPollNow(ctx context.Context, feedID string) error {
	return e.orch.TriggerPollNow(ctx, feedID)
}

func (e *Engine) TriggerPollAll(ctx context.Context) (application.TriggerSummary, error) {
	return e.orch.TriggerPollAll(ctx)
}

// RunCycle polls the feed synchronously on the caller's goroutine.
func (e *Engine) RunCycle(ctx context.Context, feedID string) (domain.CycleResult, error) {
	return e.orch.RunCycle(ctx, feedID)
}

func (e *Engine) ListFeeds(ctx context.Context, eligibleOnly bool) ([]domain.Feed, error) {
	if eligibleOnly {
		return e.feeds.ListEligibleFeeds(ctx)
	}
	return e.feeds.ListFeeds(ctx)
}

func (e *Engine) GetFeedStatus(ctx context.Context, feedID string) (domain.FeedStatusView, error) {
	return e.orch.FeedStatus(ctx, feedID)
}

func (e *Engine) GetExecutionHistory(ctx context.Context, filter domain.HistoryFilter) (domain.HistoryPage, error) {
	if err := validations.ValidateHistoryFilter(ctx, filter); err != nil {
		return domain.HistoryPage{}, err
	}
	return e.recorder.History(ctx, filter)
}

func (e *Engine) GetExecution(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	return e.recorder.Get(ctx, id)
}

func (e *Engine) RefreshExecutionStatus(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	rec, err := e.recorder.Refresh(ctx, id)
	if err != nil {
		return rec, err
	}
	e.fireExecution(ctx, rec)
	return rec, nil
}

// RefreshAllExecutions polls the provider for every open order and fires the
// execution hooks for each record it refreshed.
func (e *Engine) RefreshAllExecutions(ctx context.Context) (application.RefreshSummary, error) {
	summary, err := e.recorder.RefreshAll(ctx)
	for _, rec := range summary.Refreshed {
		e.fireExecution(ctx, rec)
	}
	return summary, err
}

func (e *Engine) ExecutionStats(ctx context.Context) (domain.ExecutionStats, error) {
	return e.recorder.Stats(ctx)
}

// ExecuteInstant fires a configured action now. The record is returned even
// when the dispatch failed.
func (e *Engine) ExecuteInstant(ctx context.Context, req domain.InstantRequest) (domain.ExecutionRecord, error) {
	rec, err := e.instant.Execute(ctx, req)
	if rec.ID != "" {
		e.fireExecution(ctx, rec)
	}
	return rec, err
}

func (e *Engine) RetryExecution(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	rec, err := e.instant.Retry(ctx, id)
	if rec.ID != "" {
		e.fireExecution(ctx, rec)
	}
	return rec, err
}

func (e *Engine) Status(ctx context.Context) (application.EngineStatus, error) {
	return e.orch.Status(ctx)
}

// Services lists the provider catalog, optionally narrowed to a platform
// and action type.
func (e *Engine) Services(ctx context.Context, platform domain.Platform, action domain.ActionType) ([]domain.Service, error) {
	if e.catalog == nil {
		return nil, domain.ErrEngineDisabled
	}
	all, err := e.catalog.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	if platform == "" && action == "" {
		return all, nil
	}
	out := make([]domain.Service, 0, len(all))
	for _, s := range all {
		if platform != "" && s.Platform != platform {
			continue
		}
		if action != "" && s.ActionType != action {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) Balance(ctx context.Context) (domain.Balance, error) {
	if e.catalog == nil {
		return domain.Balance{}, domain.ErrEngineDisabled
	}
	return e.catalog.Balance(ctx)
}

// FeedProvider checks the hosted-feed provider credentials.
func (e *Engine) FeedProvider(ctx context.Context) (domain.FeedProviderStatus, error) {
	if e.provisioner == nil {
		return domain.FeedProviderStatus{}, domain.ErrProvisioningDisabled
	}
	return e.provisioner.TestConnection(ctx)
}
