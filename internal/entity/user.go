package entity

import (
	"time"

	"gorm.io/gorm"
)

type UUID = string

const (
	ProviderPassword = "password"
	ProviderOAuthA   = "oauth-a"
	ProviderOAuthB   = "oauth-b"
)

type User struct {
	UUID        UUID           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"uniqueIndex" json:"username"`
	DisplayName string         `gorm:"not null" json:"displayName"`
	AvatarRef   string         `json:"avatarRef"`
	Provider    string         `gorm:"not null;default:password" json:"provider"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"createdAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Secret   UserSecret    `gorm:"foreignKey:UserUUID;references:UUID" json:"-"`
	Sessions []UserSession `gorm:"foreignKey:UserUUID;references:UUID" json:"-"`
}
