package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
)

func mustCreateTestUser(t *testing.T, tx *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("furima_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Name:         name,
		IsActive:     true,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func mustCreateTestItem(t *testing.T, tx *gorm.DB, sellerID uuid.UUID) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:          uuid.New(),
		UserID:      sellerID,
		Name:        "Vinyl Record",
		Description: "Light sleeve wear.",
		PriceYen:    3200,
		Condition:   enums.ItemConditionGood,
		IsSold:      true,
	}
	if err := tx.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func mustCreateTestOrder(t *testing.T, tx *gorm.DB, buyerID, itemID uuid.UUID, tradeStatus enums.TradeStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:                 uuid.New(),
		UserID:             buyerID,
		ItemID:             itemID,
		TotalAmountYen:     3200,
		PaymentStatus:      enums.PaymentStatusPaid,
		TradeStatus:        tradeStatus,
		PaymentMethod:      enums.PaymentMethodCreditCard,
		ShippingPostalCode: "150-0001",
		ShippingAddress:    "Tokyo, Shibuya 1-2-3",
	}
	if err := tx.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// memoryDraftStore is an in-process stand-in for the redis draft keys.
type memoryDraftStore struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemoryDraftStore() *memoryDraftStore {
	return &memoryDraftStore{items: make(map[string]string)}
}

func (m *memoryDraftStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryDraftStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.items[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (m *memoryDraftStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *memoryDraftStore) DraftKey(itemID, userID string) string {
	return "furima:draft:chat:" + itemID + ":" + userID
}
