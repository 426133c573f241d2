package entity

import (
	"time"

	"gorm.io/gorm"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Room struct {
	UUID        UUID           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;index" json:"name"`
	Description string         `json:"description,omitempty"`
	Visibility  string         `gorm:"not null;default:public" json:"visibility"`
	JoinCode    string         `gorm:"uniqueIndex" json:"joinCode"`
	Capacity    int            `gorm:"not null;default:10" json:"capacity"`
	OwnerUUID   UUID           `gorm:"not null;index" json:"ownerId"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"createdAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Members []Membership `gorm:"foreignKey:RoomUUID;references:UUID" json:"-"`
	Files   []CodeFile   `gorm:"foreignKey:RoomUUID;references:UUID" json:"-"`
}
