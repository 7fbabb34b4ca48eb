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

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.Seller").
		Preload("Buyer").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindTradingByItem(ctx context.Context, itemID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("item_id = ? AND trade_status = ?", itemID, enums.TradeStatusTrading).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLatestByItem(ctx context.Context, itemID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListTradingFor(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.Seller").
		Preload("Buyer").
		Joins("JOIN items ON items.id = orders.item_id").
		Where("orders.trade_status = ?", enums.TradeStatusTrading).
		Where("orders.user_id = ? OR items.user_id = ?", userID, userID)
	if cursor != nil {
		query = query.Where(
			"orders.updated_at < ? OR (orders.updated_at = ? AND orders.id < ?)",
			cursor.Timestamp, cursor.Timestamp, cursor.ID,
		)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var orders []models.Order
	err := query.
		Order("orders.updated_at DESC, orders.id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("payment_status = ? AND trade_status = ? AND created_at < ?",
			enums.PaymentStatusPending, enums.TradeStatusTrading, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("stripe_session_id", sessionID).Error
}

// MarkPaid settles a pending order. Only a live trade qualifies: once the
// sweep cancels the order a late settlement must not flip it to paid, since
// the item was already put back on sale. Zero rows means the order was
// already paid or is no longer trading.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET payment_status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND payment_status = ? AND trade_status = ?
	`, enums.PaymentStatusPaid, orderID, enums.PaymentStatusPending, enums.TradeStatusTrading)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) MarkCompleted(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET trade_status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND trade_status = ?
	`, enums.TradeStatusCompleted, orderID, enums.TradeStatusTrading)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkCanceled frees an expired reservation. Only an unpaid trading order
// qualifies, so a settlement racing the sweep never gets canceled.
func (r *repository) MarkCanceled(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET trade_status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND trade_status = ? AND payment_status = ?
	`, enums.TradeStatusCanceled, orderID, enums.TradeStatusTrading, enums.PaymentStatusPending)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Touch bumps updated_at so the trade floats to the top of the sidebar.
func (r *repository) Touch(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

func (r *repository) UpdateLastViewedAt(ctx context.Context, orderID uuid.UUID, role enums.TradeRole, at time.Time) error {
	column := "buyer_last_viewed_at"
	if role == enums.TradeRoleSeller {
		column = "seller_last_viewed_at"
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn(column, at).Error
}

func (r *repository) CountUnreadMessages(ctx context.Context, itemID, counterpartID uuid.UUID, since *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("item_id = ? AND user_id = ?", itemID, counterpartID)
	if since != nil {
		query = query.Where("created_at > ?", *since)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
