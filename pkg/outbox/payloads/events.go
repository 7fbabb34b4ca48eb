package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/yshimada/furima-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order, paid or pending.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	ItemID        uuid.UUID           `json:"item_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	AmountYen     int                 `json:"amount_yen"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// OrderPaidEvent is emitted when a pending order settles.
type OrderPaidEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ItemID    uuid.UUID `json:"item_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	AmountYen int       `json:"amount_yen"`
	PaidAt    time.Time `json:"paid_at"`
}

// TradeCompletedNoticeEvent tells the seller the buyer finished their side.
type TradeCompletedNoticeEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ItemID      uuid.UUID `json:"item_id"`
	ItemName    string    `json:"item_name"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	SellerEmail string    `json:"seller_email"`
}

// TradeCompletedEvent is emitted once both sides have rated and the trade closes.
type TradeCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ItemID      uuid.UUID `json:"item_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// ItemReleasedEvent reports that a stale reservation was swept.
type ItemReleasedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	OrderID    uuid.UUID `json:"order_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	ReleasedAt time.Time `json:"released_at"`
}
