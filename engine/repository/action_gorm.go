package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ActionGormRepository struct {
	db *gorm.DB
}

func NewActionGormRepository(db *gorm.DB) *ActionGormRepository {
	return &ActionGormRepository{db: db}
}

func (r *ActionGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&actionModel{})
}

func (r *ActionGormRepository) CreateAction(ctx context.Context, spec *domain.ActionSpec) error {
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}
	if spec.Seq == 0 {
		spec.Seq = spec.CreatedAt.UnixNano()
	}

	model, err := toActionModel(*spec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ActionGormRepository) GetAction(ctx context.Context, id string) (domain.ActionSpec, error) {
	var model actionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ActionSpec{}, domain.ErrActionNotFound
		}
		return domain.ActionSpec{}, err
	}
	return fromActionModel(model)
}

// ListActions returns actions in insertion order. Rows whose stored params
// no longer decode are skipped with a warning instead of failing the list.
func (r *ActionGormRepository) ListActions(ctx context.Context, accountID string, activeOnly bool) ([]domain.ActionSpec, error) {
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var models []actionModel
	if err := q.Order("seq ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	specs := make([]domain.ActionSpec, 0, len(models))
	for _, m := range models {
		spec, err := fromActionModel(m)
		if err != nil {
			logrus.WithError(err).WithField("action_id", m.ID).Warn("[REGISTRY] Skipping undecodable action")
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (r *ActionGormRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&actionModel{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrActionNotFound
	}
	return nil
}

func (r *ActionGormRepository) DeleteAction(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&actionModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrActionNotFound
	}
	return nil
}

func toActionModel(s domain.ActionSpec) (actionModel, error) {
	raw, err := json.Marshal(s.Params)
	if err != nil {
		return actionModel{}, fmt.Errorf("encode action params: %w", err)
	}
	return actionModel{
		ID:          s.ID,
		AccountID:   s.AccountID,
		Type:        string(s.Type),
		Params:      string(raw),
		ServiceID:   s.ServiceID,
		ServiceName: s.ServiceName,
		Active:      s.Active,
		Seq:         s.Seq,
		CreatedAt:   s.CreatedAt,
	}, nil
}

func fromActionModel(m actionModel) (domain.ActionSpec, error) {
	params, err := domain.DecodeParams(domain.ActionType(m.Type), []byte(m.Params))
	if err != nil {
		return domain.ActionSpec{}, err
	}
	return domain.ActionSpec{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Type:        domain.ActionType(m.Type),
		Params:      params,
		ServiceID:   m.ServiceID,
		ServiceName: m.ServiceName,
		Active:      m.Active,
		Seq:         m.Seq,
		CreatedAt:   m.CreatedAt,
	}, nil
}
