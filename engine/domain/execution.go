package domain

import (
	"strings"
	"time"
)

type ExecutionKind string

const (
	KindFeedTrigger ExecutionKind = "feed_trigger"
	KindInstant     ExecutionKind = "instant"
)

type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusCompleted ExecutionStatus = "completed"
	StatusPartial   ExecutionStatus = "partial"
	StatusFailed    ExecutionStatus = "failed"
)

// Terminal statuses are never refreshed again.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// MapProviderStatus folds the order service's free-form status strings
// into ExecutionStatus. Unknown values keep the order pending.
func MapProviderStatus(raw string) ExecutionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return StatusCompleted
	case "partial":
		return StatusPartial
	case "canceled", "cancelled", "refunded", "fail", "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

type ErrorClass string

const (
	ErrorClassNone      ErrorClass = ""
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassPermanent ErrorClass = "permanent"
	ErrorClassConfig    ErrorClass = "config"
	ErrorClassCancelled ErrorClass = "cancelled"
)

// ExecutionRecord is the durable trace of one dispatch. After creation only
// the provider-facing fields (status, cost, remains, refreshed-at) change.
type ExecutionRecord struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	FeedID         string          `json:"feed_id,omitempty"`
	ActionID       string          `json:"action_id,omitempty"`
	PostID         string          `json:"post_id,omitempty"`
	Kind           ExecutionKind   `json:"kind"`
	Platform       Platform        `json:"platform"`
	ActionType     ActionType      `json:"action_type"`
	TargetURL      string          `json:"target_url"`
	ServiceID      int             `json:"service_id"`
	ServiceName    string          `json:"service_name,omitempty"`
	Quantity       int             `json:"quantity"`
	CommentsCount  int             `json:"comments_count,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	Cost           *float64        `json:"cost,omitempty"`
	Remains        *int            `json:"remains,omitempty"`
	Status         ExecutionStatus `json:"status"`
	ProviderStatus string          `json:"provider_status,omitempty"`
	ErrorClass     ErrorClass      `json:"error_class,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	RefreshedAt    *time.Time      `json:"refreshed_at,omitempty"`
}

// StatusUpdate is the only mutation an ExecutionRecord accepts.
type StatusUpdate struct {
	Status         ExecutionStatus
	ProviderStatus string
	Cost           *float64
	Remains        *int
	RefreshedAt    time.Time
}

type HistoryFilter struct {
	Platform  Platform        `json:"platform,omitempty" query:"platform"`
	Kind      ExecutionKind   `json:"kind,omitempty" query:"kind"`
	Status    ExecutionStatus `json:"status,omitempty" query:"status"`
	AccountID string          `json:"account_id,omitempty" query:"account_id"`
	Limit     int             `json:"limit,omitempty" query:"limit"`
	Offset    int             `json:"offset,omitempty" query:"offset"`
}

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// Normalize applies the default page size and clamps the bounds.
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type HistoryPage struct {
	Items  []ExecutionRecord `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type PlatformStats struct {
	Platform  Platform `json:"platform"`
	Total     int64    `json:"total"`
	Failed    int64    `json:"failed"`
	TotalCost float64  `json:"total_cost"`
}

type ExecutionStats struct {
	Total     int64                     `json:"total"`
	ByStatus  map[ExecutionStatus]int64 `json:"by_status"`
	ByKind    map[ExecutionKind]int64   `json:"by_kind"`
	TotalCost float64                   `json:"total_cost"`
	Platforms []PlatformStats           `json:"platforms"`
}

// InstantRequest fires a configured action outside of feed polling.
type InstantRequest struct {
	ActionID string `json:"action_id"`
	Link     string `json:"link"`
}
