package notifications

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yshimada/furima-backend/pkg/mail"
	"github.com/yshimada/furima-backend/pkg/outbox/payloads"
)

type captureSender struct {
	sent []mail.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg mail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func noticePayload() payloads.TradeCompletedNoticeEvent {
	return payloads.TradeCompletedNoticeEvent{
		OrderID:     uuid.New(),
		ItemID:      uuid.New(),
		ItemName:    "Film Camera",
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		SellerEmail: "seller@example.com",
	}
}

func TestBuildTradeCompletedNotice(t *testing.T) {
	t.Parallel()

	payload := noticePayload()
	msg := buildTradeCompletedNotice(payload)

	assert.Equal(t, payload.SellerEmail, msg.To)
	assert.Contains(t, msg.Subject, "Film Camera")
	assert.Contains(t, msg.Body, payload.OrderID.String())
	assert.True(t, strings.Contains(msg.Body, "both sides have rated"))
}

func TestNotifySeller(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	consumer := &Consumer{sender: sender}

	payload := noticePayload()
	require.NoError(t, consumer.notifySeller(context.Background(), payload))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, payload.SellerEmail, sender.sent[0].To)
}

func TestNotifySellerMissingEmail(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	consumer := &Consumer{sender: sender}

	payload := noticePayload()
	payload.SellerEmail = ""
	err := consumer.notifySeller(context.Background(), payload)
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}
