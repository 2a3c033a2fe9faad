package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerGormRepository struct {
	db *gorm.DB
}

func NewLedgerGormRepository(db *gorm.DB) *LedgerGormRepository {
	return &LedgerGormRepository{db: db}
}

func (r *LedgerGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&processedPostModel{})
}

// Claim inserts the (feed, post) marker. The database decides the winner:
// INSERT ... ON CONFLICT DO NOTHING affects one row for exactly one caller.
func (r *LedgerGormRepository) Claim(ctx context.Context, feedID, postID string) (bool, error) {
	marker := processedPostModel{
		FeedID:    feedID,
		PostID:    postID,
		CreatedAt: time.Now().UTC(),
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerGormRepository) IsClaimed(ctx context.Context, feedID, postID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&processedPostModel{}).
		Where("feed_id = ? AND post_id = ?", feedID, postID).
		Count(&count).Error
	return count > 0, err
}
