package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/items"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/outbox"
	"github.com/yshimada/furima-backend/pkg/pagination"
)

func TestCreateFromConfirmedPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	order, err := svc.CreateFromConfirmedPayment(ctx, CreateOrderInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		AmountYen:          item.PriceYen,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
		StripeSessionID:    strPtr("cs_test_confirmed_1"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid order, got %s", order.PaymentStatus)
	}
	if order.TradeStatus != enums.TradeStatusTrading {
		t.Fatalf("expected trading order, got %s", order.TradeStatus)
	}

	var storedItem models.Item
	if err := db.First(&storedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !storedItem.IsSold {
		t.Fatalf("expected item to be reserved")
	}

	var events []models.OutboxEvent
	if err := db.Where("aggregate_id = ?", order.ID).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order_created event, got %+v", events)
	}
}

func TestCreateFromConfirmedPaymentDuplicateCallback(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	input := CreateOrderInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		AmountYen:          item.PriceYen,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
		StripeSessionID:    strPtr("cs_test_dup"),
	}

	first, err := svc.CreateFromConfirmedPayment(ctx, input)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	second, err := svc.CreateFromConfirmedPayment(ctx, input)
	if err != nil {
		t.Fatalf("expected duplicate callback to be a no-op success, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected duplicate callback to return the original order")
	}

	var count int64
	if err := db.Model(&models.Order{}).Where("item_id = ?", item.ID).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one order, got %d", count)
	}
}

func TestCreateFromPendingPaymentRollsBackWithCaller(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	sentinel := pkgerrors.New(pkgerrors.CodeDependency, "gateway down")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.CreateFromPendingPayment(ctx, tx, CreateOrderInput{
			ItemID:             item.ID,
			BuyerID:            buyer.ID,
			AmountYen:          item.PriceYen,
			PaymentMethod:      enums.PaymentMethodConvenienceStore,
			ShippingPostalCode: "150-0001",
			ShippingAddress:    "Tokyo, Shibuya",
		}); err != nil {
			return err
		}
		return sentinel
	})
	if err == nil {
		t.Fatalf("expected transaction to fail")
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected rollback to remove the order, found %d", orderCount)
	}
	var storedItem models.Item
	if err := db.First(&storedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if storedItem.IsSold {
		t.Fatalf("expected rollback to release the reservation")
	}
}

func TestMarkPaidSettlesPendingOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	var pending *models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := svc.CreateFromPendingPayment(ctx, tx, CreateOrderInput{
			ItemID:             item.ID,
			BuyerID:            buyer.ID,
			AmountYen:          item.PriceYen,
			PaymentMethod:      enums.PaymentMethodConvenienceStore,
			ShippingPostalCode: "150-0001",
			ShippingAddress:    "Tokyo, Shibuya",
			StripeSessionID:    strPtr("cs_test_konbini"),
		})
		pending = order
		return err
	})
	if err != nil {
		t.Fatalf("create pending order: %v", err)
	}

	settled, err := svc.MarkPaid(ctx, "cs_test_konbini")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if settled.ID != pending.ID || settled.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected settled order: %+v", settled)
	}

	// replay is a no-op success and emits nothing new
	if _, err := svc.MarkPaid(ctx, "cs_test_konbini"); err != nil {
		t.Fatalf("replayed settlement: %v", err)
	}
	var paidEvents int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderPaid).
		Count(&paidEvents).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if paidEvents != 1 {
		t.Fatalf("expected one order_paid event, got %d", paidEvents)
	}
}

func TestMarkPaidRejectsSweptOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	var pending *models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := svc.CreateFromPendingPayment(ctx, tx, CreateOrderInput{
			ItemID:             item.ID,
			BuyerID:            buyer.ID,
			AmountYen:          item.PriceYen,
			PaymentMethod:      enums.PaymentMethodConvenienceStore,
			ShippingPostalCode: "150-0001",
			ShippingAddress:    "Tokyo, Shibuya",
			StripeSessionID:    strPtr("cs_test_late_konbini"),
		})
		pending = order
		return err
	})
	if err != nil {
		t.Fatalf("create pending order: %v", err)
	}

	// The expiry sweep cancels the reservation before the payment lands.
	repo := NewRepository(db)
	if changed, err := repo.MarkCanceled(ctx, pending.ID); err != nil || changed != 1 {
		t.Fatalf("cancel order: changed=%d err=%v", changed, err)
	}

	_, err = svc.MarkPaid(ctx, "cs_test_late_konbini")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for late settlement, got %v", err)
	}

	var stored models.Order
	if err := db.First(&stored, "id = ?", pending.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.TradeStatus != enums.TradeStatusCanceled || stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected canceled unpaid order, got trade=%s payment=%s", stored.TradeStatus, stored.PaymentStatus)
	}

	var paidEvents int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderPaid).
		Count(&paidEvents).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if paidEvents != 0 {
		t.Fatalf("expected no order_paid event for a swept order, got %d", paidEvents)
	}
}

func TestMarkPaidUnknownSession(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := mustBuildService(t, db)

	_, err := svc.MarkPaid(context.Background(), "cs_test_missing")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListTradingForUnreadCounts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db)

	order, err := svc.CreateFromConfirmedPayment(ctx, CreateOrderInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		AmountYen:          item.PriceYen,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
		StripeSessionID:    strPtr("cs_test_sidebar"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	for i := 0; i < 2; i++ {
		msg := &models.Message{ID: uuid.New(), ItemID: item.ID, UserID: seller.ID, Body: "shipping soon"}
		if err := db.Create(msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	buyerView, err := svc.ListTradingFor(ctx, buyer.ID, pagination.Params{})
	if err != nil {
		t.Fatalf("list for buyer: %v", err)
	}
	if len(buyerView.Trades) != 1 {
		t.Fatalf("expected one trade for buyer, got %d", len(buyerView.Trades))
	}
	if buyerView.NextCursor != "" {
		t.Fatalf("expected no next cursor for a single page")
	}
	entry := buyerView.Trades[0]
	if entry.OrderID != order.ID || entry.Role != enums.TradeRoleBuyer {
		t.Fatalf("unexpected sidebar entry: %+v", entry)
	}
	if entry.UnreadCount != 2 {
		t.Fatalf("expected 2 unread seller messages, got %d", entry.UnreadCount)
	}
	if entry.CounterpartID != seller.ID {
		t.Fatalf("expected seller as counterpart")
	}

	// after the buyer views the chat, the counter resets
	repo := NewRepository(db)
	if err := repo.UpdateLastViewedAt(ctx, order.ID, enums.TradeRoleBuyer, time.Now().UTC().Add(time.Second)); err != nil {
		t.Fatalf("update last viewed: %v", err)
	}
	buyerView, err = svc.ListTradingFor(ctx, buyer.ID, pagination.Params{})
	if err != nil {
		t.Fatalf("list for buyer: %v", err)
	}
	if buyerView.Trades[0].UnreadCount != 0 {
		t.Fatalf("expected unread to reset, got %d", buyerView.Trades[0].UnreadCount)
	}

	sellerView, err := svc.ListTradingFor(ctx, seller.ID, pagination.Params{})
	if err != nil {
		t.Fatalf("list for seller: %v", err)
	}
	if len(sellerView.Trades) != 1 || sellerView.Trades[0].Role != enums.TradeRoleSeller {
		t.Fatalf("unexpected seller view: %+v", sellerView)
	}
	if sellerView.Trades[0].UnreadCount != 0 {
		t.Fatalf("seller has no unread buyer messages, got %d", sellerView.Trades[0].UnreadCount)
	}
}

func TestListTradingForPagination(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	buyer := mustCreateTestUser(t, db)

	svc := mustBuildService(t, db)

	for i := 0; i < 3; i++ {
		seller := mustCreateTestUser(t, db)
		item := mustCreateTestItem(t, db, seller.ID)
		_, err := svc.CreateFromConfirmedPayment(ctx, CreateOrderInput{
			ItemID:             item.ID,
			BuyerID:            buyer.ID,
			AmountYen:          item.PriceYen,
			PaymentMethod:      enums.PaymentMethodCreditCard,
			ShippingPostalCode: "150-0001",
			ShippingAddress:    "Tokyo, Shibuya",
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
	}

	first, err := svc.ListTradingFor(ctx, buyer.ID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Trades) != 2 {
		t.Fatalf("expected 2 trades on the first page, got %d", len(first.Trades))
	}
	if first.NextCursor == "" {
		t.Fatalf("expected a next cursor")
	}

	second, err := svc.ListTradingFor(ctx, buyer.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Trades) != 1 {
		t.Fatalf("expected 1 trade on the second page, got %d", len(second.Trades))
	}
	if second.NextCursor != "" {
		t.Fatalf("expected no cursor on the last page")
	}

	seen := map[uuid.UUID]bool{}
	for _, entry := range append(first.Trades, second.Trades...) {
		if seen[entry.OrderID] {
			t.Fatalf("order %s appeared on both pages", entry.OrderID)
		}
		seen[entry.OrderID] = true
	}

	_, err = svc.ListTradingFor(ctx, buyer.ID, pagination.Params{Cursor: "%%%not-base64%%%"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad cursor, got %v", err)
	}
}

func mustBuildService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	itemSvc, err := items.NewService(items.NewRepository(db), testTxRunner{db: db})
	if err != nil {
		t.Fatalf("build items service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Tx:     testTxRunner{db: db},
		Items:  itemSvc,
		Outbox: outbox.NewService(outbox.NewRepository(db), nil),
	})
	if err != nil {
		t.Fatalf("build orders service: %v", err)
	}
	return svc
}
