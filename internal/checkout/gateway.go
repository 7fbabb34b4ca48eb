package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/yshimada/furima-backend/pkg/stripe"
)

// SessionGateway exposes the subset of Stripe Checkout operations the
// service needs, so tests can stub the gateway.
type SessionGateway interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	RetrieveSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type sessionGatewayWrapper struct{}

// NewSessionGateway wraps the initialized Stripe client.
func NewSessionGateway(api *pkgstripe.Client) SessionGateway {
	if api == nil {
		return nil
	}
	return &sessionGatewayWrapper{}
}

func (w *sessionGatewayWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (w *sessionGatewayWrapper) RetrieveSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	return session.Get(id, params)
}
