package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a chat entry in the per-item trade channel. Deletion is soft:
// removed messages drop out of listings and unread counts but stay on record.
type Message struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID    uuid.UUID      `gorm:"column:item_id;type:uuid;not null;index"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null"`
	Body      string         `gorm:"column:body;not null"`
	ImagePath *string        `gorm:"column:image_path"`
	Author    *User          `gorm:"foreignKey:UserID"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
