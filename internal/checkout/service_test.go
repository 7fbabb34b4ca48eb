package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/items"
	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/pkg/config"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/outbox"
)

type stubGateway struct {
	created       *stripe.CheckoutSessionParams
	createErr     error
	session       *stripe.CheckoutSession
	retrieved     *stripe.CheckoutSession
	retrieveErr   error
	createCalls   int
	retrieveCalls int
}

func (s *stubGateway) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.createCalls++
	s.created = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.session != nil {
		return s.session, nil
	}
	return &stripe.CheckoutSession{ID: "cs_test_" + uuid.NewString(), URL: "https://checkout.stripe.test/pay"}, nil
}

func (s *stubGateway) RetrieveSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	s.retrieveCalls++
	if s.retrieveErr != nil {
		return nil, s.retrieveErr
	}
	return s.retrieved, nil
}

func TestCreateSessionCardDefersReservation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	gateway := &stubGateway{}
	svc := mustBuildService(t, db, gateway)

	result, err := svc.CreateSession(ctx, CreateSessionInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if result.URL == "" || result.SessionID == "" {
		t.Fatalf("expected session url and id, got %+v", result)
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("card checkout must not create an order before confirmation")
	}
	var storedItem models.Item
	if err := db.First(&storedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if storedItem.IsSold {
		t.Fatalf("card checkout must not reserve before confirmation")
	}
}

func TestCreateSessionKonbiniReservesAndRecordsOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	gateway := &stubGateway{session: &stripe.CheckoutSession{ID: "cs_test_konbini", URL: "https://checkout.stripe.test/konbini"}}
	svc := mustBuildService(t, db, gateway)

	result, err := svc.CreateSession(ctx, CreateSessionInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		PaymentMethod:      enums.PaymentMethodConvenienceStore,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if result.SessionID != "cs_test_konbini" {
		t.Fatalf("unexpected session id %s", result.SessionID)
	}

	var order models.Order
	if err := db.First(&order, "item_id = ?", item.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", order.PaymentStatus)
	}
	if order.StripeSessionID == nil || *order.StripeSessionID != "cs_test_konbini" {
		t.Fatalf("expected session id on order, got %v", order.StripeSessionID)
	}
	var storedItem models.Item
	if err := db.First(&storedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !storedItem.IsSold {
		t.Fatalf("expected konbini checkout to reserve the item")
	}
}

func TestCreateSessionKonbiniGatewayFailureRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	gateway := &stubGateway{createErr: errors.New("stripe timeout")}
	svc := mustBuildService(t, db, gateway)

	_, err := svc.CreateSession(ctx, CreateSessionInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		PaymentMethod:      enums.PaymentMethodConvenienceStore,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected rollback to remove the pending order")
	}
	var storedItem models.Item
	if err := db.First(&storedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if storedItem.IsSold {
		t.Fatalf("expected rollback to release the reservation")
	}
}

func TestCreateSessionGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	svc := mustBuildService(t, db, &stubGateway{})

	_, err := svc.CreateSession(ctx, CreateSessionInput{
		ItemID:             item.ID,
		BuyerID:            seller.ID,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for self purchase, got %v", err)
	}

	if err := db.Model(&models.Item{}).Where("id = ?", item.ID).Update("is_sold", true).Error; err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	_, err = svc.CreateSession(ctx, CreateSessionInput{
		ItemID:             item.ID,
		BuyerID:            buyer.ID,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for sold item, got %v", err)
	}
}

func TestConfirmSessionCardCreatesOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seller := mustCreateTestUser(t, db)
	buyer := mustCreateTestUser(t, db)
	item := mustCreateTestItem(t, db, seller.ID)

	session := &stripe.CheckoutSession{
		ID:            "cs_test_confirm",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   int64(item.PriceYen),
		Metadata: map[string]string{
			"item_id":              item.ID.String(),
			"buyer_id":             buyer.ID.String(),
			"payment_method":       enums.PaymentMethodCreditCard.String(),
			"shipping_postal_code": "150-0001",
			"shipping_address":     "Tokyo, Shibuya",
		},
	}
	gateway := &stubGateway{retrieved: session}
	svc := mustBuildService(t, db, gateway)

	order, err := svc.ConfirmSession(ctx, item.ID, session.ID)
	if err != nil {
		t.Fatalf("confirm session: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid || order.TradeStatus != enums.TradeStatusTrading {
		t.Fatalf("unexpected order state: %+v", order)
	}

	// replaying the success callback returns the same order
	again, err := svc.ConfirmSession(ctx, item.ID, session.ID)
	if err != nil {
		t.Fatalf("replayed confirm: %v", err)
	}
	if again.ID != order.ID {
		t.Fatalf("expected replay to return the original order")
	}
	var count int64
	if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one order, got %d", count)
	}
}

func TestConfirmSessionUnpaidCard(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{retrieved: &stripe.CheckoutSession{
		ID:            "cs_test_unpaid",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		Metadata:      map[string]string{"payment_method": enums.PaymentMethodCreditCard.String()},
	}}
	svc := mustBuildService(t, db, gateway)

	_, err := svc.ConfirmSession(context.Background(), uuid.Nil, "cs_test_unpaid")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func mustBuildService(t *testing.T, db *gorm.DB, gateway SessionGateway) Service {
	t.Helper()
	itemSvc, err := items.NewService(items.NewRepository(db), testTxRunner{db: db})
	if err != nil {
		t.Fatalf("build items service: %v", err)
	}
	ordersRepo := orders.NewRepository(db)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Tx:     testTxRunner{db: db},
		Items:  itemSvc,
		Outbox: outbox.NewService(outbox.NewRepository(db), nil),
	})
	if err != nil {
		t.Fatalf("build orders service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Tx:         testTxRunner{db: db},
		Items:      items.NewRepository(db),
		OrdersSvc:  ordersSvc,
		OrdersRepo: ordersRepo,
		Gateway:    gateway,
		Config:     config.CheckoutConfig{SuccessURL: "http://localhost/success", CancelURL: "http://localhost/cancel"},
	})
	if err != nil {
		t.Fatalf("build checkout service: %v", err)
	}
	return svc
}
