package items

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yshimada/furima-backend/pkg/db/models"
)

// Repository wires together item and like persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the item without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdate loads the item and holds its row lock for the rest of
// the caller's transaction, serializing the sold flag and counter updates
// that follow. sqlite has no row locks and serializes writers on its own,
// so the clause is skipped there.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.Item
	if err := query.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// MarkSold flips is_sold on an unsold item. Returns the number of rows
// changed; zero means another buyer won the race.
func (r *Repository) MarkSold(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE items
		SET is_sold = TRUE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_sold = FALSE
	`, id)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkUnsold returns an item to the open pool.
func (r *Repository) MarkUnsold(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE items
		SET is_sold = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id).Error
}

// FindLike loads the like row for the item/user pair, if present.
func (r *Repository) FindLike(ctx context.Context, itemID, userID uuid.UUID) (*models.ItemLike, error) {
	var like models.ItemLike
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		First(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// CreateLike inserts the like row.
func (r *Repository) CreateLike(ctx context.Context, like *models.ItemLike) error {
	return r.db.WithContext(ctx).Create(like).Error
}

// DeleteLike removes the like row for the item/user pair. Returns the number
// of rows removed so the caller can keep like_count in step.
func (r *Repository) DeleteLike(ctx context.Context, itemID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Delete(&models.ItemLike{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// AdjustLikeCount shifts like_count atomically in the database.
func (r *Repository) AdjustLikeCount(ctx context.Context, itemID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE items
		SET like_count = like_count + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, itemID).Error
}
