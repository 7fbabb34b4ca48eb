package ratings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/pkg/db/models"
)

// Repository persists trade ratings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a ratings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a rating row. The unique index on (order_id, rater_id)
// rejects a second rating from the same side.
func (r *Repository) Create(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
		return nil, err
	}
	return rating, nil
}

// CountForOrder reports how many sides of the trade have rated so far.
func (r *Repository) CountForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ScoreStatsFor returns the sum and count of scores received by a user.
func (r *Repository) ScoreStatsFor(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var stats struct {
		Total int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COALESCE(SUM(score), 0) AS total, COUNT(*) AS count").
		Where("rated_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return 0, 0, err
	}
	return stats.Total, stats.Count, nil
}
