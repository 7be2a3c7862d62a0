package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"

	STATUS_ACTIVE  = "active"
	STATUS_BLOCKED = "blocked"
)

// User is a storefront buyer identified by the chat platform, not by
// credentials. Admins additionally hold an API key for the REST surface.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ChatID     int64          `gorm:"uniqueIndex;not null" json:"chat_id" validate:"required"`
	Username   string         `gorm:"type:varchar(150)" json:"username" validate:"max=150"`
	Role       string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status     string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active blocked"`
	LastSeenAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_seen_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
