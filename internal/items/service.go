package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/pkg/db/models"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes reservation and like operations on items.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, itemID, buyerID uuid.UUID) (*models.Item, error)
	Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
	ToggleLike(ctx context.Context, itemID, userID uuid.UUID) (*LikeResult, error)
}

// LikeResult reports the state after a like toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService builds the items service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Reserve claims the single unit of an item for the buyer. It must run
// inside the caller's transaction so the claim commits together with the
// order that consumes it. The row lock serializes racing buyers; the
// conditional update backstops it.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, itemID, buyerID uuid.UUID) (*models.Item, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for reservation")
	}
	repo := s.repo.WithTx(tx)

	item, err := repo.FindByIDForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if item.UserID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot purchase your own item")
	}
	if item.IsSold {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "item already sold")
	}

	changed, err := repo.MarkSold(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item sold")
	}
	if changed == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "item already sold")
	}
	item.IsSold = true
	return item, nil
}

// Release returns a reserved item to the open pool. Used when a pending
// payment expires.
func (s *service) Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for release")
	}
	if err := s.repo.WithTx(tx).MarkUnsold(ctx, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release item")
	}
	return nil
}

// ToggleLike flips the user's like on an item and keeps like_count in step
// with the item_likes rows.
func (s *service) ToggleLike(ctx context.Context, itemID, userID uuid.UUID) (*LikeResult, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result LikeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Locking the item row serializes concurrent toggles, so the
		// like lookup below cannot go stale before the counter moves.
		if _, err := repo.FindByIDForUpdate(ctx, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}

		_, err := repo.FindLike(ctx, itemID, userID)
		switch {
		case err == nil:
			removed, err := repo.DeleteLike(ctx, itemID, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete like")
			}
			if removed > 0 {
				if err := repo.AdjustLikeCount(ctx, itemID, -1); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement like count")
				}
			}
			result.Liked = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			like := &models.ItemLike{ID: uuid.New(), ItemID: itemID, UserID: userID}
			if err := repo.CreateLike(ctx, like); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create like")
			}
			if err := repo.AdjustLikeCount(ctx, itemID, 1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment like count")
			}
			result.Liked = true
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load like")
		}

		item, err := repo.FindByID(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		result.LikeCount = item.LikeCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
