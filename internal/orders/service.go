package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/yshimada/furima-backend/pkg/db"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/metrics"
	"github.com/yshimada/furima-backend/pkg/outbox"
	"github.com/yshimada/furima-backend/pkg/outbox/payloads"
	"github.com/yshimada/furima-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ItemReserver claims the item row inside the order transaction.
type ItemReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, itemID, buyerID uuid.UUID) (*models.Item, error)
}

// Service defines order lifecycle operations.
type Service interface {
	CreateFromConfirmedPayment(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CreateFromPendingPayment(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*models.Order, error)
	MarkPaid(ctx context.Context, sessionID string) (*models.Order, error)
	Touch(ctx context.Context, orderID uuid.UUID) error
	ListTradingFor(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TradeList, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	items   ItemReserver
	box     outboxPublisher
	logg    *logger.Logger
	metrics *metrics.DomainMetrics
}

// ServiceParams bundles the dependencies of the orders service. Metrics is
// optional.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Items   ItemReserver
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item reserver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		items:   params.Items,
		box:     params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// CreateFromConfirmedPayment records a card order whose payment already
// settled at the gateway. Reservation and order insert commit together; a
// replayed confirmation hits the stripe_session_id unique index and returns
// the order created by the first callback.
func (s *service) CreateFromConfirmedPayment(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if input.StripeSessionID != nil {
		existing, err := s.repo.FindByStripeSession(ctx, *input.StripeSessionID)
		if err == nil {
			return s.logDuplicateCallback(ctx, existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check session")
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.createOrder(ctx, tx, input, enums.PaymentStatusPaid)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "uniq_orders_stripe_session_id") {
			return s.resolveDuplicateCallback(ctx, input)
		}
		return nil, err
	}
	return created, nil
}

// CreateFromPendingPayment records a konbini order inside the caller's
// transaction so the checkout flow can roll everything back if the gateway
// session cannot be created.
func (s *service) CreateFromPendingPayment(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	return s.createOrder(ctx, tx, input, enums.PaymentStatusPending)
}

func (s *service) createOrder(ctx context.Context, tx *gorm.DB, input CreateOrderInput, paymentStatus enums.PaymentStatus) (*models.Order, error) {
	item, err := s.items.Reserve(ctx, tx, input.ItemID, input.BuyerID)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	order := &models.Order{
		ID:                 uuid.New(),
		UserID:             input.BuyerID,
		ItemID:             input.ItemID,
		TotalAmountYen:     input.AmountYen,
		PaymentStatus:      paymentStatus,
		TradeStatus:        enums.TradeStatusTrading,
		PaymentMethod:      input.PaymentMethod,
		ShippingPostalCode: input.ShippingPostalCode,
		ShippingAddress:    input.ShippingAddress,
		ShippingBuilding:   input.ShippingBuilding,
		StripeSessionID:    input.StripeSessionID,
	}
	if _, err := repo.Create(ctx, order); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.TradeRoleBuyer.String()},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			ItemID:        item.ID,
			BuyerID:       input.BuyerID,
			SellerID:      item.UserID,
			AmountYen:     input.AmountYen,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: paymentStatus,
		},
	}
	if err := s.box.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	s.metrics.OrderCreated()
	order.Item = item
	return order, nil
}

func (s *service) resolveDuplicateCallback(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.StripeSessionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already exists")
	}
	existing, err := s.repo.FindByStripeSession(ctx, *input.StripeSessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
	}
	return s.logDuplicateCallback(ctx, existing), nil
}

func (s *service) logDuplicateCallback(ctx context.Context, order *models.Order) *models.Order {
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Warn(logCtx, "duplicate payment callback ignored")
	}
	return order
}

// MarkPaid settles a pending konbini order identified by its session.
// Replayed settlements are a no-op success; a settlement arriving after the
// expiry sweep canceled the order is rejected so the released item cannot
// be paid for twice.
func (s *service) MarkPaid(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	var settled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByStripeSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for session")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
		}

		changed, err := repo.MarkPaid(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if changed == 0 {
			if order.PaymentStatus == enums.PaymentStatusPaid {
				settled = order
				return nil
			}
			// The expiry sweep got there first. The item is back on sale,
			// so the late payment needs a refund, not a settlement.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was canceled before payment arrived")
		}
		order.PaymentStatus = enums.PaymentStatusPaid

		sellerID := uuid.Nil
		if order.Item != nil {
			sellerID = order.Item.UserID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:   order.ID,
				ItemID:    order.ItemID,
				BuyerID:   order.UserID,
				SellerID:  sellerID,
				AmountYen: order.TotalAmountYen,
				PaidAt:    time.Now().UTC(),
			},
		}
		if err := s.box.Emit(ctx, tx, event); err != nil {
			return err
		}
		settled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (s *service) Touch(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := s.repo.Touch(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch order")
	}
	return nil
}

// ListTradingFor returns one page of the viewer's live trades, most
// recently active first, each with the count of counterpart messages
// newer than the viewer's last visit.
func (s *service) ListTradingFor(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TradeList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	orders, err := s.repo.ListTradingFor(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list trading orders")
	}
	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	summaries := make([]TradeSummary, 0, len(orders))
	for _, order := range orders {
		if order.Item == nil {
			continue
		}
		role := RoleFor(&order, userID)
		counterpartID := order.Item.UserID
		counterpartName := ""
		lastViewed := order.BuyerLastViewedAt
		if role == enums.TradeRoleSeller {
			counterpartID = order.UserID
			lastViewed = order.SellerLastViewedAt
			if order.Buyer != nil {
				counterpartName = order.Buyer.Name
			}
		} else if order.Item.Seller != nil {
			counterpartName = order.Item.Seller.Name
		}

		unread, err := s.repo.CountUnreadMessages(ctx, order.ItemID, counterpartID, lastViewed)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread messages")
		}

		summaries = append(summaries, TradeSummary{
			OrderID:         order.ID,
			ItemID:          order.ItemID,
			ItemName:        order.Item.Name,
			ItemImagePath:   order.Item.ImagePath,
			Role:            role,
			CounterpartID:   counterpartID,
			CounterpartName: counterpartName,
			PaymentStatus:   order.PaymentStatus,
			TradeStatus:     order.TradeStatus,
			UnreadCount:     unread,
			UpdatedAt:       order.UpdatedAt,
		})
	}

	list := &TradeList{Trades: summaries}
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			Timestamp: last.UpdatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

// RoleFor computes which side of the trade the user occupies.
func RoleFor(order *models.Order, userID uuid.UUID) enums.TradeRole {
	if order.UserID == userID {
		return enums.TradeRoleBuyer
	}
	return enums.TradeRoleSeller
}

func validateCreateInput(input CreateOrderInput) error {
	if input.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AmountYen <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.ShippingAddress == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	return nil
}
