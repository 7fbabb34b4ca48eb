package orders

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
)

func mustCreateTestUser(t *testing.T, tx *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("furima_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Name:         "Repo Tester",
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
		Name:        "Film Camera",
		Description: "Works, includes strap.",
		PriceYen:    12000,
		Condition:   enums.ItemConditionGood,
	}
	if err := tx.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func strPtr(value string) *string {
	return &value
}
