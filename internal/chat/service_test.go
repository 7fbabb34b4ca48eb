package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/pkg/config"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
)

func mustBuildService(t *testing.T, db *gorm.DB, drafts draftStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Tx:     testTxRunner{db: db},
		Orders: orders.NewRepository(db),
		Drafts: drafts,
		Config: config.ChatConfig{DraftTTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	order := mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	drafts := newMemoryDraftStore()
	key := drafts.DraftKey(item.ID.String(), buyer.ID.String())
	drafts.items[key] = "half-typed"

	svc := mustBuildService(t, db, drafts)

	before := order.UpdatedAt
	time.Sleep(10 * time.Millisecond)

	msg, err := svc.Post(ctx, item.ID, buyer.ID, PostMessageInput{Body: "  Is this still available?  "})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if msg.Body != "Is this still available?" {
		t.Fatalf("expected trimmed body, got %q", msg.Body)
	}
	if !msg.Mine {
		t.Fatalf("expected message marked as the author's own")
	}

	var stored models.Order
	if err := db.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if !stored.UpdatedAt.After(before) {
		t.Fatalf("expected order activity timestamp to advance")
	}

	if _, ok := drafts.items[key]; ok {
		t.Fatalf("expected draft discarded after posting")
	}
}

func TestPostMessageGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	outsider := mustCreateTestUser(t, db, "Outsider")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	_, err := svc.Post(ctx, item.ID, outsider.ID, PostMessageInput{Body: "hello"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for outsider, got %v", err)
	}

	_, err = svc.Post(ctx, item.ID, buyer.ID, PostMessageInput{Body: "   "})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}

	_, err = svc.Post(ctx, uuid.New(), buyer.ID, PostMessageInput{Body: "hello"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestPostMessageCompletedTrade(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusCompleted)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	_, err := svc.Post(ctx, item.ID, buyer.ID, PostMessageInput{Body: "one more thing"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for completed trade, got %v", err)
	}
}

func TestEditAndDeleteOwnMessageOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	posted, err := svc.Post(ctx, item.ID, buyer.ID, PostMessageInput{Body: "original"})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}

	_, err = svc.Edit(ctx, posted.ID, seller.ID, "hijacked")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-author edit, got %v", err)
	}

	var before models.Message
	if err := db.First(&before, "id = ?", posted.ID).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}

	edited, err := svc.Edit(ctx, posted.ID, buyer.ID, "corrected")
	if err != nil {
		t.Fatalf("edit message: %v", err)
	}
	if edited.Body != "corrected" {
		t.Fatalf("expected edited body, got %q", edited.Body)
	}

	var after models.Message
	if err := db.First(&after, "id = ?", posted.ID).Error; err != nil {
		t.Fatalf("reload message: %v", err)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("expected created_at untouched by edit")
	}

	if err := svc.Delete(ctx, posted.ID, seller.ID); err == nil {
		t.Fatalf("expected non-author delete to fail")
	}
	if err := svc.Delete(ctx, posted.ID, buyer.ID); err != nil {
		t.Fatalf("delete message: %v", err)
	}

	conv, err := svc.List(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("expected deleted message excluded, got %d", len(conv.Messages))
	}
}

func TestEditAndDeleteAfterTradeCompletes(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusCompleted)

	msg := &models.Message{ID: uuid.New(), ItemID: item.ID, UserID: buyer.ID, Body: "typo herre"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	svc := mustBuildService(t, db, newMemoryDraftStore())

	// Authorship is the only guard on edits; closing the trade does not
	// freeze the transcript for its author.
	edited, err := svc.Edit(ctx, msg.ID, buyer.ID, "typo here")
	if err != nil {
		t.Fatalf("edit after completion: %v", err)
	}
	if edited.Body != "typo here" {
		t.Fatalf("expected edited body, got %q", edited.Body)
	}

	_, err = svc.Edit(ctx, msg.ID, seller.ID, "hijacked")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-author edit, got %v", err)
	}

	if err := svc.Delete(ctx, msg.ID, buyer.ID); err != nil {
		t.Fatalf("delete after completion: %v", err)
	}
}

func TestListOrderingAndReadBoundary(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	order := mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	first, err := svc.Post(ctx, item.ID, seller.ID, PostMessageInput{Body: "thanks for buying"})
	if err != nil {
		t.Fatalf("post first: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	seen := time.Now().UTC()
	ordersRepo := orders.NewRepository(db)
	if err := ordersRepo.UpdateLastViewedAt(ctx, order.ID, enums.TradeRoleBuyer, seen); err != nil {
		t.Fatalf("set read position: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := svc.Post(ctx, item.ID, seller.ID, PostMessageInput{Body: "shipping tomorrow"}); err != nil {
		t.Fatalf("post second: %v", err)
	}

	conv, err := svc.List(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if conv.Role != enums.TradeRoleBuyer {
		t.Fatalf("expected buyer role, got %s", conv.Role)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Body != "thanks for buying" || conv.Messages[1].Body != "shipping tomorrow" {
		t.Fatalf("expected oldest-first ordering, got %+v", conv.Messages)
	}
	if conv.ReadBoundary == nil || *conv.ReadBoundary != first.ID {
		t.Fatalf("expected read boundary at the first message, got %v", conv.ReadBoundary)
	}

	// The visit advanced the read position, so a second view has no unread
	// counterpart messages beyond the newest one.
	unread, err := svc.UnreadCount(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected zero unread after visiting, got %d", unread)
	}
}

func TestReadBoundaryIncludesOwnMessages(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	order := mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	own, err := svc.Post(ctx, item.ID, buyer.ID, PostMessageInput{Body: "payment sent"})
	if err != nil {
		t.Fatalf("post own message: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	ordersRepo := orders.NewRepository(db)
	if err := ordersRepo.UpdateLastViewedAt(ctx, order.ID, enums.TradeRoleBuyer, time.Now().UTC()); err != nil {
		t.Fatalf("set read position: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := svc.Post(ctx, item.ID, seller.ID, PostMessageInput{Body: "received, thanks"}); err != nil {
		t.Fatalf("post reply: %v", err)
	}

	conv, err := svc.List(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	// The viewer's own message is the newest one before their last visit,
	// so the marker sits on it rather than rendering it as new.
	if conv.ReadBoundary == nil || *conv.ReadBoundary != own.ID {
		t.Fatalf("expected read boundary at the viewer's own message, got %v", conv.ReadBoundary)
	}
}

func TestUnreadCountBeforeFirstVisit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	for _, body := range []string{"hello", "are you there"} {
		if _, err := svc.Post(ctx, item.ID, seller.ID, PostMessageInput{Body: body}); err != nil {
			t.Fatalf("post message: %v", err)
		}
	}

	unread, err := svc.UnreadCount(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected two unread messages, got %d", unread)
	}

	// Own messages never count against the author.
	unread, err = svc.UnreadCount(ctx, item.ID, seller.ID)
	if err != nil {
		t.Fatalf("unread count for seller: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected zero unread for the author, got %d", unread)
	}
}

func TestMarkViewedClearsUnread(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	if _, err := svc.Post(ctx, item.ID, seller.ID, PostMessageInput{Body: "shipping today"}); err != nil {
		t.Fatalf("post message: %v", err)
	}

	if err := svc.MarkViewed(ctx, item.ID, buyer.ID); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}

	unread, err := svc.UnreadCount(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected zero unread after mark viewed, got %d", unread)
	}

	outsider := mustCreateTestUser(t, db, "Outsider")
	if err := svc.MarkViewed(ctx, item.ID, outsider.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for outsider, got %v", err)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db, "Seller")
	buyer := mustCreateTestUser(t, db, "Buyer")
	item := mustCreateTestItem(t, db, seller.ID)
	mustCreateTestOrder(t, db, buyer.ID, item.ID, enums.TradeStatusTrading)

	svc := mustBuildService(t, db, newMemoryDraftStore())

	draft, err := svc.LoadDraft(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("load missing draft: %v", err)
	}
	if draft != "" {
		t.Fatalf("expected empty draft, got %q", draft)
	}

	if err := svc.SaveDraft(ctx, item.ID, buyer.ID, "typing this later"); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	draft, err = svc.LoadDraft(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft != "typing this later" {
		t.Fatalf("expected saved draft, got %q", draft)
	}

	// Drafts are scoped per participant.
	draft, err = svc.LoadDraft(ctx, item.ID, seller.ID)
	if err != nil {
		t.Fatalf("load seller draft: %v", err)
	}
	if draft != "" {
		t.Fatalf("expected seller draft empty, got %q", draft)
	}

	if err := svc.SaveDraft(ctx, item.ID, buyer.ID, "  "); err != nil {
		t.Fatalf("discard draft: %v", err)
	}
	draft, err = svc.LoadDraft(ctx, item.ID, buyer.ID)
	if err != nil {
		t.Fatalf("reload draft: %v", err)
	}
	if draft != "" {
		t.Fatalf("expected draft discarded, got %q", draft)
	}

	_, err = svc.LoadDraft(ctx, item.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for outsider draft, got %v", err)
	}
}
