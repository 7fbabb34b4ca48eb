package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateItem   OutboxAggregateType = "item"
	AggregateRating OutboxAggregateType = "rating"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateItem,
	AggregateRating,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, aggregate := range validAggregateTypes {
		if aggregate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	aggregate := OutboxAggregateType(value)
	if !aggregate.IsValid() {
		return "", fmt.Errorf("invalid aggregate type %q", value)
	}
	return aggregate, nil
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderPaid            OutboxEventType = "order_paid"
	EventTradeCompletedNotice OutboxEventType = "trade_completed_notice"
	EventTradeCompleted       OutboxEventType = "trade_completed"
	EventItemReleased         OutboxEventType = "item_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventTradeCompletedNotice,
	EventTradeCompleted,
	EventItemReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, eventType := range validOutboxEventTypes {
		if eventType == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	eventType := OutboxEventType(value)
	if !eventType.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return eventType, nil
}
