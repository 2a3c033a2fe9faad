package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountGormRepository struct {
	db *gorm.DB
}

func NewAccountGormRepository(db *gorm.DB) *AccountGormRepository {
	return &AccountGormRepository{db: db}
}

func (r *AccountGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&tagModel{}, &accountModel{}, &feedModel{})
}

// CreateAccount stores the account together with its feed. Handles are
// unique per platform among live accounts; a soft deleted account does not
// block re-registration.
func (r *AccountGormRepository) CreateAccount(ctx context.Context, account *domain.Account, feed *domain.Feed) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.Handle = strings.TrimPrefix(strings.TrimSpace(account.Handle), "@")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&accountModel{}).
			Where("platform = ? AND LOWER(handle) = LOWER(?)", string(account.Platform), account.Handle).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrDuplicateAccount
		}

		model := toAccountModel(*account)
		if len(account.Tags) > 0 {
			tags, err := loadTags(tx, tagIDs(account.Tags))
			if err != nil {
				return err
			}
			model.Tags = tags
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		if feed != nil {
			if feed.ID == "" {
				feed.ID = uuid.New().String()
			}
			feed.AccountID = account.ID
			if feed.Status == "" {
				feed.Status = domain.FeedStatusPending
			}
			fm := toFeedModel(*feed)
			if err := tx.Create(&fm).Error; err != nil {
				return err
			}
			feed.CreatedAt = fm.CreatedAt
			feed.UpdatedAt = fm.UpdatedAt
		}

		*account = fromAccountModel(model)
		return nil
	})
}

func (r *AccountGormRepository) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var model accountModel
	err := r.db.WithContext(ctx).Preload("Tags").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return fromAccountModel(model), nil
}

func (r *AccountGormRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	q := r.db.WithContext(ctx).Model(&accountModel{}).Preload("Tags")
	if filter.Platform != "" {
		q = q.Where("accounts.platform = ?", string(filter.Platform))
	}
	if filter.Enabled != nil {
		q = q.Where("accounts.enabled = ?", *filter.Enabled)
	}
	if filter.TagID != "" {
		q = q.Where("EXISTS (SELECT 1 FROM account_tags atg WHERE atg.account_id = accounts.id AND atg.tag_id = ?)", filter.TagID)
	}

	var models []accountModel
	if err := q.Order("accounts.created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]domain.Account, len(models))
	for i, m := range models {
		result[i] = fromAccountModel(m)
	}
	return result, nil
}

func (r *AccountGormRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	res := r.db.WithContext(ctx).Model(&accountModel{}).Where("id = ?", account.ID).Updates(map[string]any{
		"display_name": account.DisplayName,
		"profile_url":  account.ProfileURL,
		"enabled":      account.Enabled,
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountGormRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&accountModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAccountNotFound
		}
		if err := tx.Model(&feedModel{}).Where("account_id = ?", id).Update("enabled", false).Error; err != nil {
			return err
		}
		return tx.Model(&actionModel{}).Where("account_id = ?", id).Update("active", false).Error
	})
}

func (r *AccountGormRepository) SetAccountTags(ctx context.Context, accountID string, ids []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model accountModel
		if err := tx.First(&model, "id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}
		tags, err := loadTags(tx, ids)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return tx.Model(&model).Association("Tags").Clear()
		}
		return tx.Model(&model).Association("Tags").Replace(tags)
	})
}

func (r *AccountGormRepository) CreateTag(ctx context.Context, tag *domain.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.New().String()
	}
	model := tagModel{ID: tag.ID, Name: strings.TrimSpace(tag.Name), Color: tag.Color}
	if model.Color == "" {
		model.Color = "#6b7280"
	}

	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTag
		}
		return err
	}
	tag.Name, tag.Color = model.Name, model.Color
	return nil
}

func (r *AccountGormRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var models []tagModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Tag, len(models))
	for i, m := range models {
		result[i] = domain.Tag{ID: m.ID, Name: m.Name, Color: m.Color}
	}
	return result, nil
}

func (r *AccountGormRepository) DeleteTag(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM account_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&tagModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTagNotFound
		}
		return nil
	})
}

func loadTags(tx *gorm.DB, ids []string) ([]tagModel, error) {
	if len(ids) == 0 {
		return []tagModel{}, nil
	}
	var tags []tagModel
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(uniqueStrings(ids)) {
		return nil, domain.ErrTagNotFound
	}
	return tags, nil
}

func tagIDs(tags []domain.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// isUniqueViolation recognises duplicate-key errors from both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func toAccountModel(a domain.Account) accountModel {
	return accountModel{
		ID:          a.ID,
		Platform:    string(a.Platform),
		Handle:      a.Handle,
		DisplayName: a.DisplayName,
		ProfileURL:  a.ProfileURL,
		Enabled:     a.Enabled,
	}
}

func fromAccountModel(m accountModel) domain.Account {
	tags := make([]domain.Tag, len(m.Tags))
	for i, t := range m.Tags {
		tags[i] = domain.Tag{ID: t.ID, Name: t.Name, Color: t.Color}
	}
	return domain.Account{
		ID:          m.ID,
		Platform:    domain.Platform(m.Platform),
		Handle:      m.Handle,
		DisplayName: m.DisplayName,
		ProfileURL:  m.ProfileURL,
		Enabled:     m.Enabled,
		Tags:        tags,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
