package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	PostalCode  *string    `json:"postal_code,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Building    *string    `json:"building,omitempty"`
	AvatarPath  *string    `json:"avatar_path,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	PostalCode   *string
	Address      *string
	Building     *string
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		PostalCode:  u.PostalCode,
		Address:     u.Address,
		Building:    u.Building,
		AvatarPath:  u.AvatarPath,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		PostalCode:   c.PostalCode,
		Address:      c.Address,
		Building:     c.Building,
		IsActive:     isActive,
	}
}
