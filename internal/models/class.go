package models

import (
	"time"

	"kelasin/chat/pkg/chatproto"
)

// Class represents a class whose members share one chat room
type Class struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ClassMember represents a user's membership in a class
type ClassMember struct {
	ClassID  string         `json:"classId" db:"class_id"`
	UserID   string         `json:"userId" db:"user_id"`
	Role     chatproto.Role `json:"role" db:"role"` // role within the class
	JoinedAt time.Time      `json:"joinedAt" db:"joined_at"`
}
