package domain

import (
	"context"
	"time"
)

// FeedFetcher retrieves the current entries of a feed. Errors are *FetchError.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedRef string) ([]Post, error)
}

// ProvisionedFeed is a feed created for a profile on the hosted feed service.
type ProvisionedFeed struct {
	ExternalID string `json:"external_id"`
	FeedRef    string `json:"feed_url"`
	Title      string `json:"title"`
}

type FeedProviderStatus struct {
	TotalFeeds int `json:"total_feeds"`
}

// FeedProvisioner creates and removes hosted feeds for monitored profiles.
// Errors are *FetchError.
type FeedProvisioner interface {
	CreateFeed(ctx context.Context, account Account) (ProvisionedFeed, error)
	DeleteFeed(ctx context.Context, externalID string) error
	TestConnection(ctx context.Context) (FeedProviderStatus, error)
}

type OrderRequest struct {
	ServiceID int
	Link      string
	Quantity  int
	Comments  []string
}

type OrderResult struct {
	OrderID string
	Cost    *float64 // estimated from the service rate when known
}

type OrderStatus struct {
	OrderID    string
	Status     string
	Charge     *float64
	Remains    *int
	StartCount *int
}

// OrderClient places and inspects orders with the growth-service provider.
// Errors are *OrderError.
type OrderClient interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
}

type Service struct {
	ID         int        `json:"service"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Category   string     `json:"category"`
	Rate       float64    `json:"rate"`
	Min        int        `json:"min"`
	Max        int        `json:"max"`
	Platform   Platform   `json:"platform,omitempty"`
	ActionType ActionType `json:"action_type,omitempty"`
}

type Balance struct {
	Amount   float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// ServiceCatalog lists what the provider sells. Used by the dashboard only.
type ServiceCatalog interface {
	ListServices(ctx context.Context) ([]Service, error)
	Balance(ctx context.Context) (Balance, error)
}

type CommentRequest struct {
	Platform     Platform
	PostURL      string
	PostTitle    string
	PostText     string
	Count        int
	Instructions string
	UseHashtags  bool
	UseEmojis    bool
}

// CommentGenerator produces comment texts. Errors are *GenError.
type CommentGenerator interface {
	GenerateComments(ctx context.Context, req CommentRequest) ([]string, error)
}

// FeedLease is a mutual-exclusion token per feed with automatic expiry.
// Acquire returns ErrFeedBusy while another holder owns the feed.
type FeedLease interface {
	Acquire(ctx context.Context, feedID string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, feedID, token string) error
}

type IAccountRepository interface {
	Init(ctx context.Context) error
	CreateAccount(ctx context.Context, account *Account, feed *Feed) error
	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	// DeleteAccount soft deletes the account, disables its feed and
	// deactivates its actions in one transaction.
	DeleteAccount(ctx context.Context, id string) error
	SetAccountTags(ctx context.Context, accountID string, tagIDs []string) error

	CreateTag(ctx context.Context, tag *Tag) error
	ListTags(ctx context.Context) ([]Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

type IFeedRepository interface {
	Init(ctx context.Context) error
	GetFeed(ctx context.Context, id string) (Feed, error)
	GetFeedByAccount(ctx context.Context, accountID string) (Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	// ListEligibleFeeds returns enabled feeds of enabled accounts with at
	// least one active action, never-checked feeds first.
	ListEligibleFeeds(ctx context.Context) ([]Feed, error)
	UpdateFeedRef(ctx context.Context, id, feedRef string) error
	// SetFeedSource stores a provisioned feed and clears the last error.
	SetFeedSource(ctx context.Context, id, feedRef, externalID string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	MarkChecked(ctx context.Context, id string, status FeedStatus, lastError string, at time.Time) error
	SetStatus(ctx context.Context, id string, status FeedStatus) error

	GetBaseline(ctx context.Context, feedID string) (Baseline, error)
	// CreateBaseline fails with ErrBaselineAlreadyEstablished when one exists.
	CreateBaseline(ctx context.Context, baseline Baseline) error
	DeleteBaseline(ctx context.Context, feedID string) error

	RecordPoll(ctx context.Context, log PollLog) error
	RecentPolls(ctx context.Context, feedID string, limit int) ([]PollLog, error)
	PollSummary(ctx context.Context, since time.Time) (PollSummary, error)
}

// ILedgerRepository is the dedup gate: Claim inserts the (feed, post) marker
// atomically and reports false when it already existed.
type ILedgerRepository interface {
	Init(ctx context.Context) error
	Claim(ctx context.Context, feedID, postID string) (bool, error)
	IsClaimed(ctx context.Context, feedID, postID string) (bool, error)
}

type IActionRepository interface {
	Init(ctx context.Context) error
	CreateAction(ctx context.Context, spec *ActionSpec) error
	GetAction(ctx context.Context, id string) (ActionSpec, error)
	// ListActions returns the account's actions in insertion order.
	ListActions(ctx context.Context, accountID string, activeOnly bool) ([]ActionSpec, error)
	SetActive(ctx context.Context, id string, active bool) error
	DeleteAction(ctx context.Context, id string) error
}

type IExecutionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, record *ExecutionRecord) error
	Get(ctx context.Context, id string) (ExecutionRecord, error)
	List(ctx context.Context, filter HistoryFilter) ([]ExecutionRecord, int64, error)
	ListRefreshable(ctx context.Context, limit int) ([]ExecutionRecord, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	Stats(ctx context.Context) (ExecutionStats, error)
}
