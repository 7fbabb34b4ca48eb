package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/enums"
)

// Order represents the trade produced when a buyer purchases an item. The
// payment and trade axes advance independently: a konbini order starts
// payment_pending/trading, a card order starts paid/trading.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	ItemID             uuid.UUID           `gorm:"column:item_id;type:uuid;not null"`
	TotalAmountYen     int                 `gorm:"column:total_amount_yen;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'payment_pending'"`
	TradeStatus        enums.TradeStatus   `gorm:"column:trade_status;type:text;not null;default:'trading'"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	ShippingPostalCode string              `gorm:"column:shipping_postal_code;not null"`
	ShippingAddress    string              `gorm:"column:shipping_address;not null"`
	ShippingBuilding   *string             `gorm:"column:shipping_building"`
	StripeSessionID    *string             `gorm:"column:stripe_session_id;uniqueIndex:uniq_orders_stripe_session_id"`
	BuyerLastViewedAt  *time.Time          `gorm:"column:buyer_last_viewed_at"`
	SellerLastViewedAt *time.Time          `gorm:"column:seller_last_viewed_at"`
	Item               *Item               `gorm:"foreignKey:ItemID"`
	Buyer              *User               `gorm:"foreignKey:UserID"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
