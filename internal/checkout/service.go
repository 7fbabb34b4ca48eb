package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/pkg/config"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
)

const (
	metadataItemID            = "item_id"
	metadataBuyerID           = "buyer_id"
	metadataPaymentMethod     = "payment_method"
	metadataShippingPostal    = "shipping_postal_code"
	metadataShippingAddress   = "shipping_address"
	metadataShippingBuilding  = "shipping_building"
	gatewayUnavailableMessage = "payment gateway is unavailable, please retry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

// Service orchestrates payment session creation and confirmation.
type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error)
	ConfirmSession(ctx context.Context, itemID uuid.UUID, sessionID string) (*models.Order, error)
}

// CreateSessionInput carries everything needed to start a checkout.
type CreateSessionInput struct {
	ItemID             uuid.UUID
	BuyerID            uuid.UUID
	PaymentMethod      enums.PaymentMethod
	ShippingPostalCode string
	ShippingAddress    string
	ShippingBuilding   *string
}

// SessionResult points the client at the hosted payment page.
type SessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type service struct {
	tx         txRunner
	items      itemLoader
	ordersSvc  orders.Service
	ordersRepo orders.Repository
	gateway    SessionGateway
	cfg        config.CheckoutConfig
	logg       *logger.Logger
}

// ServiceParams bundles the checkout service dependencies.
type ServiceParams struct {
	Tx         txRunner
	Items      itemLoader
	OrdersSvc  orders.Service
	OrdersRepo orders.Repository
	Gateway    SessionGateway
	Config     config.CheckoutConfig
	Logger     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	if params.OrdersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("session gateway required")
	}
	return &service{
		tx:         params.Tx,
		items:      params.Items,
		ordersSvc:  params.OrdersSvc,
		ordersRepo: params.OrdersRepo,
		gateway:    params.Gateway,
		cfg:        params.Config,
		logg:       params.Logger,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.ShippingAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	item, err := s.items.FindByID(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if item.UserID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot purchase your own item")
	}
	if item.IsSold {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "item already sold")
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCreditCard:
		return s.createCardSession(ctx, item, input)
	case enums.PaymentMethodConvenienceStore:
		return s.createKonbiniSession(ctx, item, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
}

// createCardSession defers the reservation to the confirmation callback:
// the card order only exists once Stripe reports the session paid.
func (s *service) createCardSession(ctx context.Context, item *models.Item, input CreateSessionInput) (*SessionResult, error) {
	session, err := s.gateway.CreateSession(ctx, s.buildSessionParams(item, input, "card"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, gatewayUnavailableMessage)
	}
	return &SessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// createKonbiniSession reserves the item and records the pending order in
// one transaction; if the gateway cannot mint the session the whole
// transaction rolls back and the item stays open.
func (s *service) createKonbiniSession(ctx context.Context, item *models.Item, input CreateSessionInput) (*SessionResult, error) {
	var result *SessionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.ordersSvc.CreateFromPendingPayment(ctx, tx, orders.CreateOrderInput{
			ItemID:             input.ItemID,
			BuyerID:            input.BuyerID,
			AmountYen:          item.PriceYen,
			PaymentMethod:      enums.PaymentMethodConvenienceStore,
			ShippingPostalCode: input.ShippingPostalCode,
			ShippingAddress:    input.ShippingAddress,
			ShippingBuilding:   input.ShippingBuilding,
		})
		if err != nil {
			return err
		}

		session, err := s.gateway.CreateSession(ctx, s.buildSessionParams(item, input, "konbini"))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, gatewayUnavailableMessage)
		}

		if err := s.ordersRepo.WithTx(tx).SetStripeSession(ctx, order.ID, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session id")
		}
		result = &SessionResult{SessionID: session.ID, URL: session.URL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmSession handles the success-URL callback. Konbini sessions were
// fully recorded at creation time, so only paid card sessions create an
// order here.
func (s *service) ConfirmSession(ctx context.Context, itemID uuid.UUID, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, gatewayUnavailableMessage)
	}

	method := session.Metadata[metadataPaymentMethod]
	if method == enums.PaymentMethodConvenienceStore.String() {
		order, err := s.ordersRepo.FindByStripeSession(ctx, session.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for session")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
		}
		return order, nil
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
	}

	input, err := orderInputFromSession(session)
	if err != nil {
		return nil, err
	}
	if itemID != uuid.Nil && input.ItemID != itemID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session does not match item")
	}
	return s.ordersSvc.CreateFromConfirmedPayment(ctx, input)
}

func (s *service) buildSessionParams(item *models.Item, input CreateSessionInput, methodType string) *stripe.CheckoutSessionParams {
	metadata := map[string]string{
		metadataItemID:          item.ID.String(),
		metadataBuyerID:         input.BuyerID.String(),
		metadataPaymentMethod:   input.PaymentMethod.String(),
		metadataShippingPostal:  input.ShippingPostalCode,
		metadataShippingAddress: input.ShippingAddress,
	}
	if input.ShippingBuilding != nil {
		metadata[metadataShippingBuilding] = *input.ShippingBuilding
	}

	return &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{methodType}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("jpy"),
					UnitAmount: stripe.Int64(int64(item.PriceYen)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(item.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		Metadata:   metadata,
	}
}

func orderInputFromSession(session *stripe.CheckoutSession) (orders.CreateOrderInput, error) {
	itemID, err := uuid.Parse(session.Metadata[metadataItemID])
	if err != nil {
		return orders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "session missing item metadata")
	}
	buyerID, err := uuid.Parse(session.Metadata[metadataBuyerID])
	if err != nil {
		return orders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "session missing buyer metadata")
	}
	method, err := enums.ParsePaymentMethod(session.Metadata[metadataPaymentMethod])
	if err != nil {
		return orders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "session missing payment method metadata")
	}

	var building *string
	if value, ok := session.Metadata[metadataShippingBuilding]; ok && value != "" {
		building = &value
	}

	amount := int(session.AmountTotal)
	if amount <= 0 {
		return orders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "session has no payable amount")
	}

	sessionID := session.ID
	return orders.CreateOrderInput{
		ItemID:             itemID,
		BuyerID:            buyerID,
		AmountYen:          amount,
		PaymentMethod:      method,
		ShippingPostalCode: session.Metadata[metadataShippingPostal],
		ShippingAddress:    session.Metadata[metadataShippingAddress],
		ShippingBuilding:   building,
		StripeSessionID:    &sessionID,
	}, nil
}
