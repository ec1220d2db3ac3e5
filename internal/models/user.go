package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Privileged reports whether the role may see and act on every task on the
// board rather than only its own.
func (r Role) Privileged() bool {
	return r == RoleAdmin
}

type User struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username   string    `json:"username" gorm:"uniqueIndex;not null"`
	Email      string    `json:"email" gorm:"uniqueIndex;not null"`
	Password   string    `json:"-" gorm:"not null"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Department string    `json:"department"`
	Position   string    `json:"position"`
	Role       Role      `json:"role" gorm:"not null;default:'employee'"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName is the denormalized name stored on tasks (assignee/creator).
func (u *User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
