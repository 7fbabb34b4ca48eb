package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/enums"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/mail"
	"github.com/yshimada/furima-backend/pkg/outbox"
	"github.com/yshimada/furima-backend/pkg/outbox/idempotency"
	"github.com/yshimada/furima-backend/pkg/outbox/payloads"
)

const tradeNoticeConsumer = "trade-notifications"

// Consumer watches domain events and mails the seller when the buyer
// finishes their side of a trade.
type Consumer struct {
	sender       mail.Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a trade notification consumer.
func NewConsumer(sender mail.Sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventTradeCompletedNotice) {
		c.logg.Info(logCtx, "skipping non-notice event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, tradeNoticeConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.TradeCompletedNoticeEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, tradeNoticeConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id": payload.OrderID.String(),
		"item_id":  payload.ItemID.String(),
	})

	// The notice is best effort: a failed send is logged and acked rather
	// than replayed against the mail relay.
	if err := c.notifySeller(ctx, payload); err != nil {
		c.logg.Error(logCtx, "seller notification failed", err)
		return processResult{ack: true}
	}

	c.logg.Info(logCtx, "seller notified of buyer completion")
	return processResult{ack: true}
}

func (c *Consumer) notifySeller(ctx context.Context, payload payloads.TradeCompletedNoticeEvent) error {
	if payload.SellerEmail == "" {
		return fmt.Errorf("seller email missing")
	}
	return c.sender.Send(ctx, buildTradeCompletedNotice(payload))
}

func buildTradeCompletedNotice(payload payloads.TradeCompletedNoticeEvent) mail.Message {
	return mail.Message{
		To:      payload.SellerEmail,
		Subject: fmt.Sprintf("The buyer finished the trade for %s", payload.ItemName),
		Body: fmt.Sprintf(
			"The buyer has received %s and submitted their rating.\n\n"+
				"Rate the buyer to close the trade. The trade stays open until both sides have rated.\n\n"+
				"Order: %s\n",
			payload.ItemName, payload.OrderID,
		),
	}
}
