package enums

import "fmt"

// TradeStatus tracks the trade axis of an order, independent of payment.
type TradeStatus string

const (
	TradeStatusTrading   TradeStatus = "trading"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusCanceled  TradeStatus = "canceled"
)

var validTradeStatuses = []TradeStatus{
	TradeStatusTrading,
	TradeStatusCompleted,
	TradeStatusCanceled,
}

// String implements fmt.Stringer.
func (t TradeStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TradeStatus.
func (t TradeStatus) IsValid() bool {
	for _, status := range validTradeStatuses {
		if status == t {
			return true
		}
	}
	return false
}

// ParseTradeStatus converts raw input into a TradeStatus.
func ParseTradeStatus(value string) (TradeStatus, error) {
	status := TradeStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid trade status %q", value)
	}
	return status, nil
}
