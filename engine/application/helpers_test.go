package application

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-engage/core/database"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/engine/repository"
	"github.com/AzielCF/az-engage/pkg/retry"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	posts []domain.Post
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeFetcher) FetchFeed(ctx context.Context, feedRef string) ([]domain.Post, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Post(nil), f.posts...), nil
}

func (f *fakeFetcher) set(posts []domain.Post, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts, f.err = posts, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeOrders fails calls for a service with the queued errors, in order,
// then succeeds. always makes every call for that service fail.
type fakeOrders struct {
	mu       sync.Mutex
	queued   map[int][]error
	always   map[int]error
	requests []domain.OrderRequest
	statuses map[string]domain.OrderStatus
	onCall   func()
	next     int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		queued:   map[int][]error{},
		always:   map[int]error{},
		statuses: map[string]domain.OrderStatus{},
	}
}

func (o *fakeOrders) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	o.mu.Lock()
	o.requests = append(o.requests, req)
	onCall := o.onCall
	var err error
	if e, ok := o.always[req.ServiceID]; ok {
		err = e
	} else if q := o.queued[req.ServiceID]; len(q) > 0 {
		err, o.queued[req.ServiceID] = q[0], q[1:]
	}
	o.next++
	id := fmt.Sprintf("%d", 1000+o.next)
	o.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if err != nil {
		return domain.OrderResult{}, err
	}
	cost := 0.25
	return domain.OrderResult{OrderID: id, Cost: &cost}, nil
}

func (o *fakeOrders) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.statuses[orderID]
	if !ok {
		return domain.OrderStatus{OrderID: orderID, Status: "In progress"}, nil
	}
	return st, nil
}

func (o *fakeOrders) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

func (o *fakeOrders) lastRequest() domain.OrderRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests[len(o.requests)-1]
}

type fakeGenerator struct {
	comments []string
	err      error
	block    bool
}

func (g *fakeGenerator) GenerateComments(ctx context.Context, req domain.CommentRequest) ([]string, error) {
	if g.block {
		<-ctx.Done()
		return nil, &domain.GenError{Provider: "fake", Err: ctx.Err()}
	}
	return g.comments, g.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	transientErr = &domain.OrderError{Kind: domain.Transient, Code: 503, Message: "service unavailable"}
	permanentErr = &domain.OrderError{Kind: domain.Permanent, Message: "Not enough funds on balance"}
)

type harness struct {
	accounts   *repository.AccountGormRepository
	feeds      *repository.FeedGormRepository
	ledgerRepo *repository.LedgerGormRepository
	actions    *repository.ActionGormRepository
	executions *repository.ExecutionGormRepository

	fetcher   *fakeFetcher
	orders    *fakeOrders
	generator *fakeGenerator
	lease     *MemoryLease

	baseline   *BaselineTracker
	ledger     *Ledger
	registry   *Registry
	recorder   *Recorder
	dispatcher *Dispatcher
	orch       *Orchestrator
	svc        *AccountService
	instant    *InstantRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "engage.db"))
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		accounts:   repository.NewAccountGormRepository(db),
		feeds:      repository.NewFeedGormRepository(db),
		ledgerRepo: repository.NewLedgerGormRepository(db),
		actions:    repository.NewActionGormRepository(db),
		executions: repository.NewExecutionGormRepository(db),
		fetcher:    &fakeFetcher{},
		orders:     newFakeOrders(),
		generator:  &fakeGenerator{},
		lease:      NewMemoryLease(),
	}

	h.baseline = NewBaselineTracker(h.feeds)
	h.ledger = NewLedger(h.ledgerRepo)
	h.registry = NewRegistry(h.actions, h.generator, 50*time.Millisecond)
	h.recorder = NewRecorder(h.executions, h.orders)
	h.dispatcher = NewDispatcher(h.orders, h.registry, h.recorder, DispatcherConfig{
		OrderTimeout: time.Second,
		Retry:        retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	h.orch = NewOrchestrator(OrchestratorConfig{
		PollInterval:   time.Hour,
		Workers:        2,
		QueueSize:      8,
		FetchTimeout:   time.Second,
		FetchAttempts:  2,
		LeaseTTL:       time.Minute,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}, h.accounts, h.feeds, h.fetcher, h.baseline, h.ledger, h.registry, h.dispatcher, h.lease)
	h.svc = NewAccountService(h.accounts, h.feeds, h.registry, h.baseline, h.fetcher, nil, time.Second)
	h.instant = NewInstantRunner(h.accounts, h.registry, h.dispatcher, h.recorder)
	return h
}

type fakeProvisioner struct {
	mu      sync.Mutex
	err     error
	created []string
	deleted []string
}

func (p *fakeProvisioner) CreateFeed(ctx context.Context, account domain.Account) (domain.ProvisionedFeed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return domain.ProvisionedFeed{}, p.err
	}
	id := fmt.Sprintf("rss-%s-%d", account.Handle, len(p.created)+1)
	p.created = append(p.created, id)
	return domain.ProvisionedFeed{ExternalID: id, FeedRef: "https://rss.app/feeds/" + id + ".xml", Title: account.Handle}, nil
}

func (p *fakeProvisioner) DeleteFeed(ctx context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, externalID)
	return p.err
}

func (p *fakeProvisioner) TestConnection(ctx context.Context) (domain.FeedProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.FeedProviderStatus{TotalFeeds: len(p.created) - len(p.deleted)}, p.err
}

// withProvisioner returns an account service that provisions hosted feeds
// through p.
func (h *harness) withProvisioner(p domain.FeedProvisioner) *AccountService {
	return NewAccountService(h.accounts, h.feeds, h.registry, h.baseline, h.fetcher, p, time.Second)
}

func (h *harness) createAccount(t *testing.T, handle string) domain.AccountDetail {
	t.Helper()
	detail, err := h.svc.Create(context.Background(), domain.CreateAccountRequest{
		Platform: domain.PlatformInstagram,
		Handle:   handle,
		FeedRef:  "https://rss.app/feeds/" + handle + ".xml",
	})
	require.NoError(t, err)
	return detail
}

func (h *harness) addAction(t *testing.T, accountID string, typ domain.ActionType, serviceID int, params any) domain.ActionSpec {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	spec, err := h.svc.AddAction(context.Background(), accountID, domain.CreateActionRequest{
		Type:      typ,
		Params:    raw,
		ServiceID: serviceID,
	})
	require.NoError(t, err)
	return spec
}

func likeParams(n int) map[string]any {
	return map[string]any{"quantity": map[string]any{"min": n}}
}

func at(t time.Time) *time.Time { return &t }

func post(id string, published *time.Time) domain.Post {
	return domain.Post{ID: id, URL: "https://www.instagram.com/p/" + id + "/", PublishedAt: published}
}
