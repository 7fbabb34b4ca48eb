package ratings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
)

// RatingDTO is the transport shape of a submitted rating.
type RatingDTO struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	RatedID   uuid.UUID `json:"rated_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitResult reports the rating plus the trade state it left behind. The
// trade closes only once both sides have rated.
type SubmitResult struct {
	Rating      RatingDTO         `json:"rating"`
	TradeStatus enums.TradeStatus `json:"trade_status"`
}

// AverageDTO is a user's rating summary across all finished trades.
type AverageDTO struct {
	UserID  uuid.UUID       `json:"user_id"`
	Average decimal.Decimal `json:"average"`
	Count   int64           `json:"count"`
}

func ratingToDTO(rating models.Rating) RatingDTO {
	return RatingDTO{
		ID:        rating.ID,
		OrderID:   rating.OrderID,
		RaterID:   rating.RaterID,
		RatedID:   rating.RatedID,
		Score:     rating.Score,
		CreatedAt: rating.CreatedAt,
	}
}
