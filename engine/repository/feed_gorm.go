package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedGormRepository stores feeds, their baselines and the per-cycle poll log.
type FeedGormRepository struct {
	db *gorm.DB
}

func NewFeedGormRepository(db *gorm.DB) *FeedGormRepository {
	return &FeedGormRepository{db: db}
}

func (r *FeedGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&feedModel{}, &baselineModel{}, &pollLogModel{})
}

func (r *FeedGormRepository) GetFeed(ctx context.Context, id string) (domain.Feed, error) {
	var model feedModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Feed{}, domain.ErrFeedNotFound
		}
		return domain.Feed{}, err
	}
	return fromFeedModel(model), nil
}

func (r *FeedGormRepository) GetFeedByAccount(ctx context.Context, accountID string) (domain.Feed, error) {
	var model feedModel
	if err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Feed{}, domain.ErrFeedNotFound
		}
		return domain.Feed{}, err
	}
	return fromFeedModel(model), nil
}

func (r *FeedGormRepository) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	var models []feedModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromFeedModels(models), nil
}

func (r *FeedGormRepository) ListEligibleFeeds(ctx context.Context) ([]domain.Feed, error) {
	var models []feedModel
	err := r.db.WithContext(ctx).
		Select("feeds.*").
		Joins("JOIN accounts ON accounts.id = feeds.account_id AND accounts.deleted_at IS NULL").
		Where("feeds.enabled = ? AND accounts.enabled = ?", true, true).
		Where("feeds.feed_ref <> ''").
		Where("feeds.status IN ?", []string{
			string(domain.FeedStatusPending),
			string(domain.FeedStatusActive),
			string(domain.FeedStatusError),
		}).
		Where("EXISTS (SELECT 1 FROM engagement_actions ea WHERE ea.account_id = feeds.account_id AND ea.active = ?)", true).
		Order("CASE WHEN feeds.last_checked_at IS NULL THEN 0 ELSE 1 END, feeds.last_checked_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromFeedModels(models), nil
}

func (r *FeedGormRepository) UpdateFeedRef(ctx context.Context, id, feedRef string) error {
	return r.updateFeed(ctx, id, map[string]any{"feed_ref": feedRef})
}

func (r *FeedGormRepository) SetFeedSource(ctx context.Context, id, feedRef, externalID string) error {
	return r.updateFeed(ctx, id, map[string]any{
		"feed_ref":    feedRef,
		"external_id": externalID,
		"last_error":  "",
	})
}

func (r *FeedGormRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.updateFeed(ctx, id, map[string]any{"enabled": enabled})
}

// MarkChecked records the outcome of a fetch. An empty lastError clears it.
func (r *FeedGormRepository) MarkChecked(ctx context.Context, id string, status domain.FeedStatus, lastError string, at time.Time) error {
	return r.updateFeed(ctx, id, map[string]any{
		"status":          string(status),
		"last_error":      lastError,
		"last_checked_at": at.UTC(),
	})
}

func (r *FeedGormRepository) SetStatus(ctx context.Context, id string, status domain.FeedStatus) error {
	return r.updateFeed(ctx, id, map[string]any{"status": string(status)})
}

func (r *FeedGormRepository) updateFeed(ctx context.Context, id string, values map[string]any) error {
	values["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&feedModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrFeedNotFound
	}
	return nil
}

func (r *FeedGormRepository) GetBaseline(ctx context.Context, feedID string) (domain.Baseline, error) {
	var model baselineModel
	if err := r.db.WithContext(ctx).First(&model, "feed_id = ?", feedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Baseline{}, domain.ErrBaselineNotFound
		}
		return domain.Baseline{}, err
	}
	return domain.Baseline{
		FeedID:        model.FeedID,
		Cutoff:        model.Cutoff.UTC(),
		PostIDs:       model.PostIDs,
		EstablishedAt: model.EstablishedAt.UTC(),
	}, nil
}

// CreateBaseline relies on the feed_id primary key: the insert is ignored
// when a baseline already exists and that is reported as
// ErrBaselineAlreadyEstablished.
func (r *FeedGormRepository) CreateBaseline(ctx context.Context, baseline domain.Baseline) error {
	ids := baseline.PostIDs
	if ids == nil {
		ids = []string{}
	}
	model := baselineModel{
		FeedID:        baseline.FeedID,
		Cutoff:        baseline.Cutoff.UTC(),
		PostIDs:       ids,
		EstablishedAt: baseline.EstablishedAt.UTC(),
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.ErrBaselineAlreadyEstablished
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBaselineAlreadyEstablished
	}
	return nil
}

func (r *FeedGormRepository) DeleteBaseline(ctx context.Context, feedID string) error {
	return r.db.WithContext(ctx).Delete(&baselineModel{}, "feed_id = ?", feedID).Error
}

func (r *FeedGormRepository) RecordPoll(ctx context.Context, log domain.PollLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	model := pollLogModel{
		ID:               log.ID,
		FeedID:           log.FeedID,
		AccountID:        log.AccountID,
		Status:           string(log.Status),
		PostsFound:       log.PostsFound,
		NewPosts:         log.NewPosts,
		ActionsTriggered: log.ActionsTriggered,
		ActionsFailed:    log.ActionsFailed,
		Deferred:         log.Deferred,
		ErrorMessage:     log.ErrorMessage,
		DurationMs:       log.DurationMs,
		CreatedAt:        log.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *FeedGormRepository) RecentPolls(ctx context.Context, feedID string, limit int) ([]domain.PollLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []pollLogModel
	err := r.db.WithContext(ctx).
		Where("feed_id = ?", feedID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	logs := make([]domain.PollLog, len(models))
	for i, m := range models {
		logs[i] = domain.PollLog{
			ID:               m.ID,
			FeedID:           m.FeedID,
			AccountID:        m.AccountID,
			Status:           domain.PollStatus(m.Status),
			PostsFound:       m.PostsFound,
			NewPosts:         m.NewPosts,
			ActionsTriggered: m.ActionsTriggered,
			ActionsFailed:    m.ActionsFailed,
			Deferred:         m.Deferred,
			ErrorMessage:     m.ErrorMessage,
			DurationMs:       m.DurationMs,
			CreatedAt:        m.CreatedAt.UTC(),
		}
	}
	return logs, nil
}

func (r *FeedGormRepository) PollSummary(ctx context.Context, since time.Time) (domain.PollSummary, error) {
	var row struct {
		Cycles           int64
		Errors           int64
		NewPosts         int64
		ActionsTriggered int64
	}
	err := r.db.WithContext(ctx).Model(&pollLogModel{}).
		Select(`COUNT(*) AS cycles,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS errors,
			COALESCE(SUM(new_posts), 0) AS new_posts,
			COALESCE(SUM(actions_triggered), 0) AS actions_triggered`, string(domain.PollError)).
		Where("created_at >= ?", since.UTC()).
		Scan(&row).Error
	if err != nil {
		return domain.PollSummary{}, err
	}
	return domain.PollSummary{
		Since:            since.UTC(),
		Cycles:           row.Cycles,
		Errors:           row.Errors,
		NewPosts:         row.NewPosts,
		ActionsTriggered: row.ActionsTriggered,
	}, nil
}

func toFeedModel(f domain.Feed) feedModel {
	return feedModel{
		ID:            f.ID,
		AccountID:     f.AccountID,
		FeedRef:       f.FeedRef,
		ExternalID:    f.ExternalID,
		Status:        string(f.Status),
		Enabled:       f.Enabled,
		LastCheckedAt: f.LastCheckedAt,
		LastError:     f.LastError,
	}
}

func fromFeedModel(m feedModel) domain.Feed {
	var checked *time.Time
	if m.LastCheckedAt != nil {
		t := m.LastCheckedAt.UTC()
		checked = &t
	}
	return domain.Feed{
		ID:            m.ID,
		AccountID:     m.AccountID,
		FeedRef:       m.FeedRef,
		ExternalID:    m.ExternalID,
		Status:        domain.FeedStatus(m.Status),
		Enabled:       m.Enabled,
		LastCheckedAt: checked,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func fromFeedModels(models []feedModel) []domain.Feed {
	feeds := make([]domain.Feed, len(models))
	for i, m := range models {
		feeds[i] = fromFeedModel(m)
	}
	return feeds
}
