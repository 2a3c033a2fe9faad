package domain

import "time"

type FeedStatus string

const (
	FeedStatusPending FeedStatus = "pending"
	FeedStatusActive  FeedStatus = "active"
	FeedStatusError   FeedStatus = "error"
)

type Feed struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	FeedRef       string     `json:"feed_url"`
	ExternalID    string     `json:"external_id,omitempty"`
	Status        FeedStatus `json:"status"`
	Enabled       bool       `json:"enabled"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Post is one entry observed in a feed. PublishedAt is nil when the feed
// item carries no parseable date.
type Post struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Baseline separates posts that existed when monitoring started from posts
// that are new. Both the cutoff and the explicit id set are kept because
// feed dates are unreliable.
type Baseline struct {
	FeedID        string    `json:"feed_id"`
	Cutoff        time.Time `json:"cutoff"`
	PostIDs       []string  `json:"post_ids"`
	EstablishedAt time.Time `json:"established_at"`
}

func (b Baseline) Contains(postID string) bool {
	for _, id := range b.PostIDs {
		if id == postID {
			return true
		}
	}
	return false
}

type ClaimResult int

const (
	Claimed ClaimResult = iota + 1
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// CycleState is the in-memory position of a feed in its poll cycle.
type CycleState string

const (
	CycleIdle        CycleState = "idle"
	CycleQueued      CycleState = "queued"
	CyclePolling     CycleState = "polling"
	CycleDispatching CycleState = "dispatching"
)

type PollStatus string

const (
	PollSuccess    PollStatus = "success"
	PollNoNewPosts PollStatus = "no_new_posts"
	PollBaseline   PollStatus = "baseline"
	PollError      PollStatus = "error"
	PollSkipped    PollStatus = "skipped"
)

type PollLog struct {
	ID               string     `json:"id"`
	FeedID           string     `json:"feed_id"`
	AccountID        string     `json:"account_id"`
	Status           PollStatus `json:"status"`
	PostsFound       int        `json:"posts_found"`
	NewPosts         int        `json:"new_posts"`
	ActionsTriggered int        `json:"actions_triggered"`
	ActionsFailed    int        `json:"actions_failed"`
	Deferred         int        `json:"deferred"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
	CreatedAt        time.Time  `json:"created_at"`
}

type PollSummary struct {
	Since            time.Time `json:"since"`
	Cycles           int64     `json:"cycles"`
	Errors           int64     `json:"errors"`
	NewPosts         int64     `json:"new_posts"`
	ActionsTriggered int64     `json:"actions_triggered"`
}

// FeedStatusView answers GetFeedStatus.
type FeedStatusView struct {
	FeedID         string     `json:"feed_id"`
	AccountID      string     `json:"account_id"`
	FeedRef        string     `json:"feed_url"`
	Status         FeedStatus `json:"status"`
	Enabled        bool       `json:"enabled"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	State          CycleState `json:"state"`
	InFlight       int        `json:"in_flight_dispatches"`
	HasBaseline    bool       `json:"has_baseline"`
	BaselineCutoff *time.Time `json:"baseline_cutoff,omitempty"`
	RecentPolls    []PollLog  `json:"recent_polls,omitempty"`
}

// CycleResult is what one poll cycle of one feed did.
type CycleResult struct {
	FeedID           string            `json:"feed_id"`
	AccountID        string            `json:"account_id"`
	Status           PollStatus        `json:"status"`
	PostsFound       int               `json:"posts_found"`
	NewPosts         int               `json:"new_posts"`
	Claimed          int               `json:"claimed"`
	ActionsTriggered int               `json:"actions_triggered"`
	ActionsFailed    int               `json:"actions_failed"`
	Deferred         int               `json:"deferred"`
	BaselineCreated  bool              `json:"baseline_created"`
	Error            string            `json:"error,omitempty"`
	Duration         time.Duration     `json:"duration"`
	Executions       []ExecutionRecord `json:"executions,omitempty"`
}
