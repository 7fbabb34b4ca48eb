package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
)

// MessageDTO is the transport shape of a chat message.
type MessageDTO struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	UserID     uuid.UUID `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	ImagePath  *string   `json:"image_path,omitempty"`
	Mine       bool      `json:"mine"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Conversation is the full chat view for one trade: the ordered messages
// plus the viewer's read boundary, computed before the visit updates it.
type Conversation struct {
	OrderID      uuid.UUID       `json:"order_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	Role         enums.TradeRole `json:"role"`
	Messages     []MessageDTO    `json:"messages"`
	ReadBoundary *uuid.UUID      `json:"read_boundary_message_id,omitempty"`
}

func messageToDTO(msg models.Message, viewerID uuid.UUID) MessageDTO {
	dto := MessageDTO{
		ID:        msg.ID,
		ItemID:    msg.ItemID,
		UserID:    msg.UserID,
		Body:      msg.Body,
		ImagePath: msg.ImagePath,
		Mine:      msg.UserID == viewerID,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
	if msg.Author != nil {
		dto.AuthorName = msg.Author.Name
	}
	return dto
}
