package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemLike records a user's like on an item, one per user per item.
type ItemLike struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uniq_item_likes_item_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uniq_item_likes_item_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
