package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/enums"
)

// Item represents a single-unit listing owned by its seller.
type Item struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Name        string              `gorm:"column:name;not null"`
	Brand       *string             `gorm:"column:brand"`
	Description string              `gorm:"column:description;not null"`
	PriceYen    int                 `gorm:"column:price_yen;not null"`
	ImagePath   *string             `gorm:"column:image_path"`
	Condition   enums.ItemCondition `gorm:"column:condition;type:text;not null"`
	IsSold      bool                `gorm:"column:is_sold;not null;default:false"`
	LikeCount   int                 `gorm:"column:like_count;not null;default:0"`
	Seller      *User               `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
