package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/pkg/retry"
	"github.com/AzielCF/az-engage/pkg/workerpool"
	"github.com/sirupsen/logrus"
)

type OrchestratorConfig struct {
	PollInterval   time.Duration
	Workers        int
	QueueSize      int
	FetchTimeout   time.Duration
	FetchAttempts  int
	FeedDeadline   time.Duration
	LeaseTTL       time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// CycleHook observes every finished poll cycle.
type CycleHook func(ctx context.Context, result domain.CycleResult)

// TriggerSummary reports what TriggerPollAll queued.
type TriggerSummary struct {
	Eligible int `json:"eligible"`
	Queued   int `json:"queued"`
	Skipped  int `json:"skipped"`
	Dropped  int `json:"dropped"`
}

type feedState struct {
	state    domain.CycleState
	inFlight int
}

// Orchestrator runs poll cycles: fetch, baseline, dedup, dispatch. Cycles
// are executed on a sharded worker pool keyed by feed id, so a feed never
// runs twice at once locally; the FeedLease extends that across instances.
type Orchestrator struct {
	cfg        OrchestratorConfig
	accounts   domain.IAccountRepository
	feeds      domain.IFeedRepository
	fetcher    domain.FeedFetcher
	baseline   *BaselineTracker
	ledger     *Ledger
	registry   *Registry
	dispatcher *Dispatcher
	lease      domain.FeedLease
	pool       *workerpool.Pool

	mu          sync.Mutex
	states      map[string]*feedState
	hooks       []CycleHook
	running     bool
	startedOnce bool
	cancel      context.CancelFunc
	done        chan struct{}
	lastTick    time.Time

	now func() time.Time
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	accounts domain.IAccountRepository,
	feeds domain.IFeedRepository,
	fetcher domain.FeedFetcher,
	baseline *BaselineTracker,
	ledger *Ledger,
	registry *Registry,
	dispatcher *Dispatcher,
	lease domain.FeedLease,
) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Minute
	}
	if lease == nil {
		lease = NewMemoryLease()
	}

	return &Orchestrator{
		cfg:        cfg,
		accounts:   accounts,
		feeds:      feeds,
		fetcher:    fetcher,
		baseline:   baseline,
		ledger:     ledger,
		registry:   registry,
		dispatcher: dispatcher,
		lease:      lease,
		pool:       workerpool.New("POLL", cfg.Workers, cfg.QueueSize),
		states:     make(map[string]*feedState),
		now:        time.Now,
	}
}

// RegisterCycleHook adds fn to the hooks run after every cycle. Hooks run
// on the worker goroutine and must not block for long.
func (o *Orchestrator) RegisterCycleHook(fn CycleHook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, fn)
}

// Start launches the worker pool and the poll timer. The first tick fires
// immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	if o.startedOnce {
		// A stopped pool cannot be started again.
		o.pool = workerpool.New("POLL", o.cfg.Workers, o.cfg.QueueSize)
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running = true
	o.startedOnce = true
	pool := o.pool
	o.mu.Unlock()

	pool.Start(runCtx)
	go o.loop(runCtx)

	logrus.WithFields(logrus.Fields{
		"interval": o.cfg.PollInterval.String(),
		"workers":  o.cfg.Workers,
	}).Info("[ORCHESTRATOR] Started")
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	o.mu.Lock()
	o.lastTick = o.now()
	o.mu.Unlock()

	summary, err := o.TriggerPollAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("[ORCHESTRATOR] Could not list eligible feeds")
		return
	}
	if summary.Eligible > 0 {
		logrus.WithFields(logrus.Fields{
			"eligible": summary.Eligible,
			"queued":   summary.Queued,
			"skipped":  summary.Skipped,
			"dropped":  summary.Dropped,
		}).Debug("[ORCHESTRATOR] Tick")
	}
}

// Stop halts the timer and waits for running cycles to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel, done, pool := o.cancel, o.done, o.pool
	o.mu.Unlock()

	cancel()
	<-done
	pool.Stop()

	o.mu.Lock()
	for id, st := range o.states {
		if st.state == domain.CycleQueued {
			delete(o.states, id)
		}
	}
	o.mu.Unlock()
	logrus.Info("[ORCHESTRATOR] Stopped")
}

func (o *Orchestrator) currentPool() *workerpool.Pool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pool
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) LastTick() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTick
}

func (o *Orchestrator) PoolStats() workerpool.Stats {
	return o.currentPool().Stats()
}

func (o *Orchestrator) Interval() time.Duration {
	return o.cfg.PollInterval
}

// TriggerPollNow queues an immediate cycle for the feed on the shared pool.
// It fails with ErrFeedBusy when the feed is already queued or running and
// with ErrQueueFull when the pool cannot take it.
func (o *Orchestrator) TriggerPollNow(ctx context.Context, feedID string) error {
	if !o.Running() {
		return domain.ErrEngineDisabled
	}
	if _, err := o.feeds.GetFeed(ctx, feedID); err != nil {
		return err
	}
	return o.enqueue(feedID)
}

// TriggerPollAll queues a cycle for every eligible feed.
func (o *Orchestrator) TriggerPollAll(ctx context.Context) (TriggerSummary, error) {
	var summary TriggerSummary
	if !o.Running() {
		return summary, domain.ErrEngineDisabled
	}
	feeds, err := o.feeds.ListEligibleFeeds(ctx)
	if err != nil {
		return summary, err
	}
	summary.Eligible = len(feeds)
	for _, feed := range feeds {
		switch err := o.enqueue(feed.ID); {
		case err == nil:
			summary.Queued++
		case errors.Is(err, domain.ErrFeedBusy):
			summary.Skipped++
		default:
			summary.Dropped++
		}
	}
	return summary, nil
}

func (o *Orchestrator) enqueue(feedID string) error {
	o.mu.Lock()
	if st, ok := o.states[feedID]; ok && st.state != domain.CycleIdle {
		o.mu.Unlock()
		return domain.ErrFeedBusy
	}
	o.states[feedID] = &feedState{state: domain.CycleQueued}
	o.mu.Unlock()

	ok := o.currentPool().TryDispatch(workerpool.Job{
		Key: feedID,
		Handler: func(ctx context.Context) error {
			_, err := o.RunCycle(ctx, feedID)
			if errors.Is(err, domain.ErrFeedBusy) {
				return nil
			}
			return err
		},
	})
	if !ok {
		o.setIdle(feedID)
		logrus.WithField("feed_id", feedID).Warn("[ORCHESTRATOR] Poll queue full, cycle dropped")
		return domain.ErrQueueFull
	}
	return nil
}

// FeedState returns the in-memory cycle state of the feed and the number of
// dispatches currently in flight for it.
func (o *Orchestrator) FeedState(feedID string) (domain.CycleState, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[feedID]; ok {
		return st.state, st.inFlight
	}
	return domain.CycleIdle, 0
}

func (o *Orchestrator) begin(feedID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[feedID]
	if ok && (st.state == domain.CyclePolling || st.state == domain.CycleDispatching) {
		return false
	}
	o.states[feedID] = &feedState{state: domain.CyclePolling}
	return true
}

func (o *Orchestrator) setState(feedID string, state domain.CycleState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[feedID]; ok {
		st.state = state
	}
}

func (o *Orchestrator) addInFlight(feedID string, delta int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[feedID]; ok {
		st.inFlight += delta
	}
}

func (o *Orchestrator) setIdle(feedID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, feedID)
}

// RunCycle executes one poll cycle for the feed synchronously. Failures of
// single posts or actions are recorded in the result; the returned error is
// reserved for cycle-level problems (busy feed, fetch failure, storage).
func (o *Orchestrator) RunCycle(ctx context.Context, feedID string) (domain.CycleResult, error) {
	start := o.now()
	result := domain.CycleResult{FeedID: feedID, Status: domain.PollSkipped}

	if !o.begin(feedID) {
		return result, domain.ErrFeedBusy
	}
	defer o.setIdle(feedID)

	log := logrus.WithField("feed_id", feedID)

	token, err := o.lease.Acquire(ctx, feedID, o.cfg.LeaseTTL)
	if err != nil {
		if errors.Is(err, domain.ErrFeedBusy) {
			log.Debug("[ORCHESTRATOR] Feed leased elsewhere, skipping")
		}
		return result, err
	}
	defer func() {
		if err := o.lease.Release(context.WithoutCancel(ctx), feedID, token); err != nil {
			log.WithError(err).Warn("[ORCHESTRATOR] Could not release feed lease")
		}
	}()

	cycleErr := o.runLeased(ctx, feedID, log, &result)
	result.Duration = o.now().Sub(start)
	if cycleErr != nil && result.Error == "" {
		result.Error = cycleErr.Error()
	}

	if result.AccountID != "" {
		o.recordPoll(ctx, result)
	}
	o.runHooks(ctx, result)

	log.WithFields(logrus.Fields{
		"status":            result.Status,
		"posts_found":       result.PostsFound,
		"new_posts":         result.NewPosts,
		"actions_triggered": result.ActionsTriggered,
		"actions_failed":    result.ActionsFailed,
		"deferred":          result.Deferred,
		"duration":          result.Duration.String(),
	}).Info("[ORCHESTRATOR] Cycle finished")

	return result, cycleErr
}

func (o *Orchestrator) runLeased(ctx context.Context, feedID string, log *logrus.Entry, result *domain.CycleResult) error {
	feed, err := o.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return err
	}
	result.AccountID = feed.AccountID

	account, err := o.accounts.GetAccount(ctx, feed.AccountID)
	if err != nil {
		return err
	}
	if !feed.Enabled || !account.Enabled {
		result.Error = "feed or account disabled"
		return nil
	}

	posts, err := o.fetch(ctx, feed, log)
	if err != nil {
		result.Status = domain.PollError
		if markErr := o.feeds.MarkChecked(context.WithoutCancel(ctx), feed.ID, domain.FeedStatusError, err.Error(), o.now()); markErr != nil {
			log.WithError(markErr).Error("[ORCHESTRATOR] Could not store feed error")
		}
		log.WithError(err).Warn("[ORCHESTRATOR] Feed fetch failed")
		return err
	}
	result.PostsFound = len(posts)

	if err := o.feeds.MarkChecked(ctx, feed.ID, domain.FeedStatusActive, "", o.now()); err != nil {
		return err
	}

	baseline, ok, err := o.baseline.Get(ctx, feed.ID)
	if err != nil {
		return err
	}
	if !ok {
		result.Status = domain.PollBaseline
		if _, err := o.baseline.Establish(ctx, feed.ID, posts); err != nil {
			if errors.Is(err, domain.ErrBaselineAlreadyEstablished) {
				return nil
			}
			return err
		}
		result.BaselineCreated = true
		return nil
	}

	var fresh []domain.Post
	for _, p := range posts {
		if IsPastBaseline(baseline, p) {
			fresh = append(fresh, p)
		}
	}
	result.NewPosts = len(fresh)
	if len(fresh) == 0 {
		result.Status = domain.PollNoNewPosts
		return nil
	}

	actions, err := o.registry.ActionsFor(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}

	result.Status = domain.PollSuccess
	o.setState(feed.ID, domain.CycleDispatching)

	var deadline time.Time
	if o.cfg.FeedDeadline > 0 {
		deadline = o.now().Add(o.cfg.FeedDeadline)
	}

	for i, post := range fresh {
		if ctx.Err() != nil || (!deadline.IsZero() && o.now().After(deadline)) {
			result.Deferred = len(fresh) - i
			log.WithField("deferred", result.Deferred).Warn("[ORCHESTRATOR] Feed deadline reached, remaining posts left for the next cycle")
			break
		}

		claim, err := o.ledger.TryClaim(ctx, feed.ID, post.ID)
		if err != nil {
			log.WithError(err).WithField("post_id", post.ID).Error("[ORCHESTRATOR] Claim failed")
			continue
		}
		if claim == domain.AlreadyClaimed {
			continue
		}
		result.Claimed++

		records, errs := o.fanOut(ctx, account, feed, post, actions)
		for j, rec := range records {
			result.Executions = append(result.Executions, rec)
			if errs[j] != nil {
				result.ActionsFailed++
			} else {
				result.ActionsTriggered++
			}
		}
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, feed domain.Feed, log *logrus.Entry) ([]domain.Post, error) {
	var posts []domain.Post
	cfg := retry.Config{
		MaxAttempts: o.cfg.FetchAttempts,
		BaseDelay:   o.cfg.RetryBaseDelay,
		MaxDelay:    o.cfg.RetryMaxDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Debug("[ORCHESTRATOR] Retrying feed fetch")
		},
	}
	_, err := retry.Do(ctx, cfg, domain.IsTransient, func(int) error {
		fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
		p, err := o.fetcher.FetchFeed(fetchCtx, feed.FeedRef)
		if err != nil {
			return err
		}
		posts = p
		return nil
	})
	return posts, err
}

// fanOut dispatches the post's actions one after another in registry order.
// A failing or panicking action does not affect the ones after it.
func (o *Orchestrator) fanOut(ctx context.Context, account domain.Account, feed domain.Feed, post domain.Post, actions []domain.ActionSpec) ([]domain.ExecutionRecord, []error) {
	records := make([]domain.ExecutionRecord, len(actions))
	errs := make([]error, len(actions))

	for i, action := range actions {
		records[i], errs[i] = o.dispatchOne(ctx, account, feed, post, action)
	}
	return records, errs
}

func (o *Orchestrator) dispatchOne(ctx context.Context, account domain.Account, feed domain.Feed, post domain.Post, action domain.ActionSpec) (rec domain.ExecutionRecord, err error) {
	o.addInFlight(feed.ID, 1)
	defer o.addInFlight(feed.ID, -1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
			logrus.WithFields(logrus.Fields{
				"feed_id":   feed.ID,
				"action_id": action.ID,
				"panic":     r,
			}).Error("[ORCHESTRATOR] Dispatch panicked")
		}
	}()
	return o.dispatcher.Dispatch(ctx, DispatchRequest{
		Account: account,
		Feed:    &feed,
		Post:    &post,
		Action:  action,
		Kind:    domain.KindFeedTrigger,
	})
}

func (o *Orchestrator) recordPoll(ctx context.Context, result domain.CycleResult) {
	entry := domain.PollLog{
		FeedID:           result.FeedID,
		AccountID:        result.AccountID,
		Status:           result.Status,
		PostsFound:       result.PostsFound,
		NewPosts:         result.NewPosts,
		ActionsTriggered: result.ActionsTriggered,
		ActionsFailed:    result.ActionsFailed,
		Deferred:         result.Deferred,
		ErrorMessage:     result.Error,
		DurationMs:       result.Duration.Milliseconds(),
		CreatedAt:        o.now().UTC(),
	}
	if err := o.feeds.RecordPoll(context.WithoutCancel(ctx), entry); err != nil {
		logrus.WithError(err).WithField("feed_id", result.FeedID).Warn("[ORCHESTRATOR] Could not write poll log")
	}
}

func (o *Orchestrator) runHooks(ctx context.Context, result domain.CycleResult) {
	o.mu.Lock()
	hooks := append([]CycleHook(nil), o.hooks...)
	o.mu.Unlock()
	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("panic", r).Error("[ORCHESTRATOR] Cycle hook panicked")
				}
			}()
			hook(ctx, result)
		}()
	}
}

// FeedStatus assembles the operator view of one feed.
func (o *Orchestrator) FeedStatus(ctx context.Context, feedID string) (domain.FeedStatusView, error) {
	feed, err := o.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return domain.FeedStatusView{}, err
	}
	state, inFlight := o.FeedState(feedID)
	view := domain.FeedStatusView{
		FeedID:        feed.ID,
		AccountID:     feed.AccountID,
		FeedRef:       feed.FeedRef,
		Status:        feed.Status,
		Enabled:       feed.Enabled,
		LastCheckedAt: feed.LastCheckedAt,
		LastError:     feed.LastError,
		State:         state,
		InFlight:      inFlight,
	}

	baseline, ok, err := o.baseline.Get(ctx, feedID)
	if err != nil {
		return domain.FeedStatusView{}, err
	}
	if ok {
		cutoff := baseline.Cutoff
		view.HasBaseline = true
		view.BaselineCutoff = &cutoff
	}

	polls, err := o.feeds.RecentPolls(ctx, feedID, 10)
	if err != nil {
		return domain.FeedStatusView{}, err
	}
	view.RecentPolls = polls
	return view, nil
}
