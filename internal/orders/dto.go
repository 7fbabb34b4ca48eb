package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/enums"
)

// CreateOrderInput carries everything needed to persist a new order.
type CreateOrderInput struct {
	ItemID             uuid.UUID
	BuyerID            uuid.UUID
	AmountYen          int
	PaymentMethod      enums.PaymentMethod
	ShippingPostalCode string
	ShippingAddress    string
	ShippingBuilding   *string
	StripeSessionID    *string
}

// TradeSummary is one sidebar entry: a live trade seen from the viewer's
// side, with the unread counter for the counterpart's messages.
type TradeSummary struct {
	OrderID         uuid.UUID           `json:"order_id"`
	ItemID          uuid.UUID           `json:"item_id"`
	ItemName        string              `json:"item_name"`
	ItemImagePath   *string             `json:"item_image_path,omitempty"`
	Role            enums.TradeRole     `json:"role"`
	CounterpartID   uuid.UUID           `json:"counterpart_id"`
	CounterpartName string              `json:"counterpart_name"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	TradeStatus     enums.TradeStatus   `json:"trade_status"`
	UnreadCount     int64               `json:"unread_count"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TradeList is one page of sidebar entries. NextCursor is empty on the
// last page.
type TradeList struct {
	Trades     []TradeSummary `json:"trades"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
