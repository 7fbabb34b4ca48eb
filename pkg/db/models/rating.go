package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one side's score for the counterpart on a finished trade. The
// unique index enforces at most one rating per rater per order.
type Rating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uniq_ratings_order_rater"`
	RaterID   uuid.UUID `gorm:"column:rater_id;type:uuid;not null;uniqueIndex:uniq_ratings_order_rater"`
	RatedID   uuid.UUID `gorm:"column:rated_id;type:uuid;not null;index"`
	Score     int       `gorm:"column:score;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
