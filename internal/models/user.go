package models

import (
	"time"

	"kelasin/chat/pkg/chatproto"
)

// User represents a user in the system
type User struct {
	ID        string         `json:"id" db:"id"`
	Email     string         `json:"email" db:"email"`
	Name      string         `json:"name" db:"name"`
	Password  string         `json:"-" db:"password_hash"` // Never expose in JSON
	Image     *string        `json:"image,omitempty" db:"image"`
	Role      chatproto.Role `json:"role" db:"role"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}

// UserResponse is what we send to clients (without sensitive data)
type UserResponse struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Image     *string        `json:"image,omitempty"`
	Role      chatproto.Role `json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// ToSender converts User to the author summary carried by messages
func (u *User) ToSender() chatproto.Sender {
	return chatproto.Sender{
		ID:    u.ID,
		Name:  u.Name,
		Image: u.Image,
		Role:  u.Role,
	}
}
