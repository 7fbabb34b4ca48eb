package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/orders"
	dbpkg "github.com/yshimada/furima-backend/pkg/db"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/metrics"
	"github.com/yshimada/furima-backend/pkg/outbox"
	"github.com/yshimada/furima-backend/pkg/outbox/payloads"
)

const (
	minScore = 1
	maxScore = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the dual-rating trade completion operations.
type Service interface {
	Submit(ctx context.Context, orderID, raterID uuid.UUID, score int) (*SubmitResult, error)
	AverageFor(ctx context.Context, userID uuid.UUID) (*AverageDTO, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	ordersRep orders.Repository
	box       outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics
}

// ServiceParams bundles the dependencies of the ratings service. Metrics is
// optional.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Orders  orders.Repository
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
}

// NewService builds the ratings service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ratings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		ordersRep: params.Orders,
		box:       params.Outbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Submit records one side's rating for the trade. The buyer's rating also
// notifies the seller; the second rating of either order closes the trade in
// the same transaction.
func (s *service) Submit(ctx context.Context, orderID, raterID uuid.UUID, score int) (*SubmitResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if raterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.ordersRep.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "trade item missing")
	}
	if raterID != order.UserID && raterID != order.Item.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this trade")
	}
	if order.TradeStatus != enums.TradeStatusTrading {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "trade is not active")
	}
	if score < minScore || score > maxScore {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}

	role := orders.RoleFor(order, raterID)
	ratedID := order.Item.UserID
	if role == enums.TradeRoleSeller {
		ratedID = order.UserID
	}

	rating := &models.Rating{
		ID:      uuid.New(),
		OrderID: orderID,
		RaterID: raterID,
		RatedID: ratedID,
		Score:   score,
	}
	result := &SubmitResult{TradeStatus: order.TradeStatus}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, rating); err != nil {
			if dbpkg.IsUniqueViolation(err, "uniq_ratings_order_rater") {
				return pkgerrors.New(pkgerrors.CodeConflict, "you already rated this trade")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rating")
		}

		if role == enums.TradeRoleBuyer {
			if err := s.emitSellerNotice(ctx, tx, order, rating); err != nil {
				return err
			}
		}

		rated, err := repo.CountForOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count ratings")
		}
		if rated < 2 {
			return nil
		}
		return s.completeTrade(ctx, tx, order, result)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RatingSubmitted()

	result.Rating = ratingToDTO(*rating)
	return result, nil
}

// emitSellerNotice tells the seller the buyer finished their side. It fires
// on the buyer's rating even when the seller has not rated yet, so the
// seller learns the trade is one step from closing.
func (s *service) emitSellerNotice(ctx context.Context, tx *gorm.DB, order *models.Order, rating *models.Rating) error {
	sellerEmail := ""
	if order.Item.Seller != nil {
		sellerEmail = order.Item.Seller.Email
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventTradeCompletedNotice,
		AggregateType: enums.AggregateRating,
		AggregateID:   rating.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: rating.RaterID, Role: enums.TradeRoleBuyer.String()},
		Data: payloads.TradeCompletedNoticeEvent{
			OrderID:     order.ID,
			ItemID:      order.ItemID,
			ItemName:    order.Item.Name,
			BuyerID:     order.UserID,
			SellerID:    order.Item.UserID,
			SellerEmail: sellerEmail,
		},
	}
	return s.box.Emit(ctx, tx, event)
}

func (s *service) completeTrade(ctx context.Context, tx *gorm.DB, order *models.Order, result *SubmitResult) error {
	repo := s.ordersRep.WithTx(tx)
	changed, err := repo.MarkCompleted(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete trade")
	}
	if changed == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "trade is not active")
	}
	result.TradeStatus = enums.TradeStatusCompleted

	event := outbox.DomainEvent{
		EventType:     enums.EventTradeCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.TradeCompletedEvent{
			OrderID:     order.ID,
			ItemID:      order.ItemID,
			BuyerID:     order.UserID,
			SellerID:    order.Item.UserID,
			CompletedAt: time.Now().UTC(),
		},
	}
	if err := s.box.Emit(ctx, tx, event); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "trade completed")
	}
	return nil
}

// AverageFor returns the user's received score average, rounded half up to
// one decimal place.
func (s *service) AverageFor(ctx context.Context, userID uuid.UUID) (*AverageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	total, count, err := s.repo.ScoreStatsFor(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load score stats")
	}
	avg := decimal.Zero
	if count > 0 {
		avg = decimal.NewFromInt(total).DivRound(decimal.NewFromInt(count), 1)
	}
	return &AverageDTO{UserID: userID, Average: avg, Count: count}, nil
}
