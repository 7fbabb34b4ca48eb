package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	"github.com/yshimada/furima-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByStripeSession(ctx context.Context, sessionID string) (*models.Order, error)
	FindTradingByItem(ctx context.Context, itemID uuid.UUID) (*models.Order, error)
	FindLatestByItem(ctx context.Context, itemID uuid.UUID) (*models.Order, error)
	ListTradingFor(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkCompleted(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkCanceled(ctx context.Context, orderID uuid.UUID) (int64, error)
	Touch(ctx context.Context, orderID uuid.UUID) error
	UpdateLastViewedAt(ctx context.Context, orderID uuid.UUID, role enums.TradeRole, at time.Time) error
	CountUnreadMessages(ctx context.Context, itemID, counterpartID uuid.UUID, since *time.Time) (int64, error)
}
