package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExecutionGormRepository is append-only apart from UpdateStatus.
type ExecutionGormRepository struct {
	db *gorm.DB
}

func NewExecutionGormRepository(db *gorm.DB) *ExecutionGormRepository {
	return &ExecutionGormRepository{db: db}
}

func (r *ExecutionGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&executionModel{})
}

func (r *ExecutionGormRepository) Create(ctx context.Context, record *domain.ExecutionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	model := toExecutionModel(*record)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ExecutionGormRepository) Get(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	var model executionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ExecutionRecord{}, domain.ErrExecutionNotFound
		}
		return domain.ExecutionRecord{}, err
	}
	return fromExecutionModel(model), nil
}

func (r *ExecutionGormRepository) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.ExecutionRecord, int64, error) {
	filter = filter.Normalize()

	q := r.db.WithContext(ctx).Model(&executionModel{})
	if filter.Platform != "" {
		q = q.Where("platform = ?", string(filter.Platform))
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", string(filter.Kind))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []executionModel
	err := q.Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.ExecutionRecord, len(models))
	for i, m := range models {
		records[i] = fromExecutionModel(m)
	}
	return records, total, nil
}

// ListRefreshable returns pending records that carry a provider order id,
// oldest first.
func (r *ExecutionGormRepository) ListRefreshable(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var models []executionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND order_id <> ?", string(domain.StatusPending), "").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.ExecutionRecord, len(models))
	for i, m := range models {
		records[i] = fromExecutionModel(m)
	}
	return records, nil
}

// UpdateStatus writes the provider-facing fields. Nil cost or remains keep
// the stored value.
func (r *ExecutionGormRepository) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	values := map[string]any{
		"status":          string(update.Status),
		"provider_status": update.ProviderStatus,
		"refreshed_at":    update.RefreshedAt.UTC(),
	}
	if update.Cost != nil {
		values["cost"] = *update.Cost
	}
	if update.Remains != nil {
		values["remains"] = *update.Remains
	}

	res := r.db.WithContext(ctx).Model(&executionModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrExecutionNotFound
	}
	return nil
}

func (r *ExecutionGormRepository) Stats(ctx context.Context) (domain.ExecutionStats, error) {
	stats := domain.ExecutionStats{
		ByStatus:  map[domain.ExecutionStatus]int64{},
		ByKind:    map[domain.ExecutionKind]int64{},
		Platforms: []domain.PlatformStats{},
	}
	db := r.db.WithContext(ctx)

	var byStatus []struct {
		Status string
		N      int64
	}
	if err := db.Model(&executionModel{}).Select("status, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return stats, err
	}
	for _, row := range byStatus {
		stats.ByStatus[domain.ExecutionStatus(row.Status)] = row.N
		stats.Total += row.N
	}

	var byKind []struct {
		Kind string
		N    int64
	}
	if err := db.Model(&executionModel{}).Select("kind, COUNT(*) AS n").Group("kind").Scan(&byKind).Error; err != nil {
		return stats, err
	}
	for _, row := range byKind {
		stats.ByKind[domain.ExecutionKind(row.Kind)] = row.N
	}

	var platforms []struct {
		Platform  string
		Total     int64
		Failed    int64
		TotalCost float64
	}
	err := db.Model(&executionModel{}).
		Select(`platform, COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(cost), 0) AS total_cost`, string(domain.StatusFailed)).
		Group("platform").
		Order("platform ASC").
		Scan(&platforms).Error
	if err != nil {
		return stats, err
	}
	for _, row := range platforms {
		stats.Platforms = append(stats.Platforms, domain.PlatformStats{
			Platform:  domain.Platform(row.Platform),
			Total:     row.Total,
			Failed:    row.Failed,
			TotalCost: row.TotalCost,
		})
		stats.TotalCost += row.TotalCost
	}

	return stats, nil
}

func toExecutionModel(e domain.ExecutionRecord) executionModel {
	return executionModel{
		ID:             e.ID,
		AccountID:      e.AccountID,
		FeedID:         e.FeedID,
		ActionID:       e.ActionID,
		PostID:         e.PostID,
		Kind:           string(e.Kind),
		Platform:       string(e.Platform),
		ActionType:     string(e.ActionType),
		TargetURL:      e.TargetURL,
		ServiceID:      e.ServiceID,
		ServiceName:    e.ServiceName,
		Quantity:       e.Quantity,
		CommentsCount:  e.CommentsCount,
		OrderID:        e.OrderID,
		Cost:           e.Cost,
		Remains:        e.Remains,
		Status:         string(e.Status),
		ProviderStatus: e.ProviderStatus,
		ErrorClass:     string(e.ErrorClass),
		ErrorMessage:   e.ErrorMessage,
		Attempts:       e.Attempts,
		CreatedAt:      e.CreatedAt.UTC(),
		RefreshedAt:    e.RefreshedAt,
	}
}

func fromExecutionModel(m executionModel) domain.ExecutionRecord {
	var refreshed *time.Time
	if m.RefreshedAt != nil {
		t := m.RefreshedAt.UTC()
		refreshed = &t
	}
	return domain.ExecutionRecord{
		ID:             m.ID,
		AccountID:      m.AccountID,
		FeedID:         m.FeedID,
		ActionID:       m.ActionID,
		PostID:         m.PostID,
		Kind:           domain.ExecutionKind(m.Kind),
		Platform:       domain.Platform(m.Platform),
		ActionType:     domain.ActionType(m.ActionType),
		TargetURL:      m.TargetURL,
		ServiceID:      m.ServiceID,
		ServiceName:    m.ServiceName,
		Quantity:       m.Quantity,
		CommentsCount:  m.CommentsCount,
		OrderID:        m.OrderID,
		Cost:           m.Cost,
		Remains:        m.Remains,
		Status:         domain.ExecutionStatus(m.Status),
		ProviderStatus: m.ProviderStatus,
		ErrorClass:     domain.ErrorClass(m.ErrorClass),
		ErrorMessage:   m.ErrorMessage,
		Attempts:       m.Attempts,
		CreatedAt:      m.CreatedAt.UTC(),
		RefreshedAt:    refreshed,
	}
}
