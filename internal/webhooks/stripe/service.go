package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/yshimada/furima-backend/internal/checkout"
	"github.com/yshimada/furima-backend/internal/orders"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/metrics"
)

// ServiceParams bundles the stripe webhook service dependencies. Metrics is
// optional.
type ServiceParams struct {
	Checkout checkout.Service
	Orders   orders.Service
	Logger   *logger.Logger
	Metrics  *metrics.DomainMetrics
}

// Service reacts to Stripe checkout lifecycle events. Card payments turn
// into orders here; konbini settlements flip the pending order to paid.
type Service struct {
	checkout checkout.Service
	orders   orders.Service
	logg     *logger.Logger
	metrics  *metrics.DomainMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	return &Service{
		checkout: params.Checkout,
		orders:   params.Orders,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	s.metrics.WebhookEvent(string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.handleSessionCompleted(ctx, session)
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		_, err = s.orders.MarkPaid(ctx, session.ID)
		return err
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		// The pending order stays as-is; the expiry sweep releases the item
		// if no successful payment follows.
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("async payment failed for session %s", session.ID))
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) handleSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	itemID, err := uuid.Parse(session.Metadata["item_id"])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session item metadata missing")
	}
	order, err := s.checkout.ConfirmSession(ctx, itemID, session.ID)
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "checkout session settled")
	}
	return nil
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id missing")
	}
	return &session, nil
}
