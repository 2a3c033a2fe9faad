package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Persistence models live here so the domain package stays free of gorm tags.

type accountModel struct {
	ID          string `gorm:"primaryKey"`
	Platform    string `gorm:"index:idx_accounts_platform_handle;not null"`
	Handle      string `gorm:"index:idx_accounts_platform_handle;not null"`
	DisplayName string
	ProfileURL  string         `gorm:"column:profile_url"`
	Enabled     bool           `gorm:"not null;default:true"`
	Tags        []tagModel     `gorm:"many2many:account_tags;joinForeignKey:AccountID;joinReferences:TagID"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (accountModel) TableName() string {
	return "accounts"
}

type tagModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Color     string    `gorm:"default:'#6b7280'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (tagModel) TableName() string {
	return "tags"
}

type feedModel struct {
	ID            string     `gorm:"primaryKey"`
	AccountID     string     `gorm:"uniqueIndex;not null"`
	FeedRef       string     `gorm:"column:feed_ref;not null"`
	ExternalID    string     `gorm:"column:external_id;index"`
	Status        string     `gorm:"index;not null;default:'pending'"`
	Enabled       bool       `gorm:"not null;default:true"`
	LastCheckedAt *time.Time `gorm:"index"`
	LastError     string     `gorm:"type:text"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

func (feedModel) TableName() string {
	return "feeds"
}

type baselineModel struct {
	FeedID        string    `gorm:"primaryKey"`
	Cutoff        time.Time `gorm:"not null"`
	PostIDs       []string  `gorm:"column:post_ids;type:text;serializer:json"`
	EstablishedAt time.Time `gorm:"not null"`
}

func (baselineModel) TableName() string {
	return "feed_baselines"
}

// processedPostModel is the dedup ledger. The composite primary key is the
// gate: a second insert for the same (feed, post) affects no rows.
type processedPostModel struct {
	FeedID    string    `gorm:"primaryKey"`
	PostID    string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (processedPostModel) TableName() string {
	return "processed_posts"
}

type actionModel struct {
	ID          string `gorm:"primaryKey"`
	AccountID   string `gorm:"index;not null"`
	Type        string `gorm:"not null"`
	Params      string `gorm:"type:text;not null;default:'{}'"` // JSON, shape depends on Type
	ServiceID   int    `gorm:"not null"`
	ServiceName string
	Active      bool      `gorm:"index;not null;default:true"`
	Seq         int64     `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (actionModel) TableName() string {
	return "engagement_actions"
}

type executionModel struct {
	ID             string `gorm:"primaryKey"`
	AccountID      string `gorm:"index;not null"`
	FeedID         string `gorm:"index"`
	ActionID       string
	PostID         string
	Kind           string `gorm:"index;not null"`
	Platform       string `gorm:"index"`
	ActionType     string
	TargetURL      string `gorm:"column:target_url;type:text"`
	ServiceID      int
	ServiceName    string
	Quantity       int
	CommentsCount  int
	OrderID        string `gorm:"index"`
	Cost           *float64
	Remains        *int
	Status         string `gorm:"index;not null"`
	ProviderStatus string
	ErrorClass     string
	ErrorMessage   string    `gorm:"type:text"`
	Attempts       int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"index;not null"`
	RefreshedAt    *time.Time
}

func (executionModel) TableName() string {
	return "executions"
}

type pollLogModel struct {
	ID               string `gorm:"primaryKey"`
	FeedID           string `gorm:"index;not null"`
	AccountID        string
	Status           string `gorm:"not null"`
	PostsFound       int
	NewPosts         int
	ActionsTriggered int
	ActionsFailed    int
	Deferred         int
	ErrorMessage     string `gorm:"type:text"`
	DurationMs       int64
	CreatedAt        time.Time `gorm:"index;not null"`
}

func (pollLogModel) TableName() string {
	return "poll_logs"
}

// AutoMigrate creates every table the engine uses.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&tagModel{},
		&accountModel{},
		&feedModel{},
		&baselineModel{},
		&processedPostModel{},
		&actionModel{},
		&executionModel{},
		&pollLogModel{},
	)
}
