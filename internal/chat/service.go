package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/pkg/config"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type draftStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DraftKey(itemID, userID string) string
}

// PostMessageInput carries a new chat message.
type PostMessageInput struct {
	Body      string
	ImagePath *string
}

// Service defines the per-item trade chat operations.
type Service interface {
	Post(ctx context.Context, itemID, authorID uuid.UUID, input PostMessageInput) (*MessageDTO, error)
	Edit(ctx context.Context, messageID, actorID uuid.UUID, body string) (*MessageDTO, error)
	Delete(ctx context.Context, messageID, actorID uuid.UUID) error
	List(ctx context.Context, itemID, viewerID uuid.UUID) (*Conversation, error)
	MarkViewed(ctx context.Context, itemID, viewerID uuid.UUID) error
	UnreadCount(ctx context.Context, itemID, viewerID uuid.UUID) (int64, error)
	SaveDraft(ctx context.Context, itemID, userID uuid.UUID, body string) error
	LoadDraft(ctx context.Context, itemID, userID uuid.UUID) (string, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	ordersRep orders.Repository
	drafts    draftStore
	cfg       config.ChatConfig
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics
}

// ServiceParams bundles the dependencies of the chat service. Metrics is
// optional.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Orders  orders.Repository
	Drafts  draftStore
	Config  config.ChatConfig
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
}

// NewService builds the chat service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft store required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		ordersRep: params.Orders,
		drafts:    params.Drafts,
		cfg:       params.Config,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Post appends a message to the item's trade chat, bumps the order's
// activity timestamp in the same transaction, and discards any saved draft.
func (s *service) Post(ctx context.Context, itemID, authorID uuid.UUID, input PostMessageInput) (*MessageDTO, error) {
	order, err := s.participantOrder(ctx, itemID, authorID)
	if err != nil {
		return nil, err
	}
	if order.TradeStatus != enums.TradeStatusTrading {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "trade is not active")
	}

	body := strings.TrimSpace(input.Body)
	if body == "" && input.ImagePath == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}

	msg := &models.Message{
		ID:        uuid.New(),
		ItemID:    itemID,
		UserID:    authorID,
		Body:      body,
		ImagePath: input.ImagePath,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}
		return s.ordersRep.WithTx(tx).Touch(ctx, order.ID)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.MessagePosted()

	if err := s.drafts.Del(ctx, s.drafts.DraftKey(itemID.String(), authorID.String())); err != nil && s.logg != nil {
		logCtx := s.logg.WithItemID(ctx, itemID.String())
		s.logg.Warn(logCtx, "failed to clear chat draft")
	}

	dto := messageToDTO(*msg, authorID)
	return &dto, nil
}

// Edit replaces the body of the caller's own message. Authorship is the
// only guard; authors may still fix their messages after the trade closes.
// The original created_at is preserved so chat ordering never shifts.
func (s *service) Edit(ctx context.Context, messageID, actorID uuid.UUID, body string) (*MessageDTO, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}

	msg, err := s.authoredMessage(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBody(ctx, messageID, body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update message")
	}
	msg.Body = body
	dto := messageToDTO(*msg, actorID)
	return &dto, nil
}

// Delete soft-deletes the caller's own message.
func (s *service) Delete(ctx context.Context, messageID, actorID uuid.UUID) error {
	if _, err := s.authoredMessage(ctx, messageID, actorID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, messageID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete message")
	}
	return nil
}

// List returns the item's conversation for the viewer. The read boundary is
// the newest message, by either party, created at or before the viewer's
// previous visit; the visit itself then advances the viewer's read position.
func (s *service) List(ctx context.Context, itemID, viewerID uuid.UUID) (*Conversation, error) {
	order, err := s.participantOrder(ctx, itemID, viewerID)
	if err != nil {
		return nil, err
	}
	role := orders.RoleFor(order, viewerID)
	lastViewed := order.BuyerLastViewedAt
	if role == enums.TradeRoleSeller {
		lastViewed = order.SellerLastViewedAt
	}

	messages, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}

	conv := &Conversation{
		OrderID:  order.ID,
		ItemID:   itemID,
		Role:     role,
		Messages: make([]MessageDTO, 0, len(messages)),
	}
	for _, msg := range messages {
		if lastViewed != nil && !msg.CreatedAt.After(*lastViewed) {
			id := msg.ID
			conv.ReadBoundary = &id
		}
		conv.Messages = append(conv.Messages, messageToDTO(msg, viewerID))
	}

	if err := s.ordersRep.UpdateLastViewedAt(ctx, order.ID, role, time.Now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update read position")
	}
	return conv, nil
}

// MarkViewed advances the viewer's read position to now without loading
// the conversation.
func (s *service) MarkViewed(ctx context.Context, itemID, viewerID uuid.UUID) error {
	order, err := s.participantOrder(ctx, itemID, viewerID)
	if err != nil {
		return err
	}
	role := orders.RoleFor(order, viewerID)
	if err := s.ordersRep.UpdateLastViewedAt(ctx, order.ID, role, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update read position")
	}
	return nil
}

// UnreadCount reports how many counterpart messages arrived since the
// viewer's last visit to the chat.
func (s *service) UnreadCount(ctx context.Context, itemID, viewerID uuid.UUID) (int64, error) {
	order, err := s.participantOrder(ctx, itemID, viewerID)
	if err != nil {
		return 0, err
	}
	role := orders.RoleFor(order, viewerID)
	counterpartID := order.UserID
	lastViewed := order.SellerLastViewedAt
	if role == enums.TradeRoleBuyer {
		counterpartID = order.Item.UserID
		lastViewed = order.BuyerLastViewedAt
	}
	count, err := s.ordersRep.CountUnreadMessages(ctx, itemID, counterpartID, lastViewed)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread messages")
	}
	return count, nil
}

// SaveDraft stores the user's unsent message text. An empty body discards
// the draft.
func (s *service) SaveDraft(ctx context.Context, itemID, userID uuid.UUID, body string) error {
	if _, err := s.participantOrder(ctx, itemID, userID); err != nil {
		return err
	}
	key := s.drafts.DraftKey(itemID.String(), userID.String())
	if strings.TrimSpace(body) == "" {
		if err := s.drafts.Del(ctx, key); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard draft")
		}
		return nil
	}
	if err := s.drafts.Set(ctx, key, body, s.cfg.DraftTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save draft")
	}
	return nil
}

// LoadDraft returns the user's saved draft, or empty when none exists.
func (s *service) LoadDraft(ctx context.Context, itemID, userID uuid.UUID) (string, error) {
	if _, err := s.participantOrder(ctx, itemID, userID); err != nil {
		return "", err
	}
	body, err := s.drafts.Get(ctx, s.drafts.DraftKey(itemID.String(), userID.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load draft")
	}
	return body, nil
}

// participantOrder resolves the item's trade and verifies the actor is one
// of its two parties.
func (s *service) participantOrder(ctx context.Context, itemID, actorID uuid.UUID) (*models.Order, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.ordersRep.FindLatestByItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no trade exists for this item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load trade")
	}
	if order.Item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "trade item missing")
	}
	if actorID != order.UserID && actorID != order.Item.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this trade")
	}
	return order, nil
}

func (s *service) authoredMessage(ctx context.Context, messageID, actorID uuid.UUID) (*models.Message, error) {
	if messageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load message")
	}
	if msg.UserID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the author may modify a message")
	}
	return msg, nil
}
