package entity

import "time"

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"

	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type Membership struct {
	RoomUUID UUID      `gorm:"primaryKey" json:"roomId"`
	UserUUID UUID      `gorm:"primaryKey" json:"userId"`
	Role     string    `gorm:"not null;default:MEMBER" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joinedAt"`
	Presence string    `gorm:"not null;default:offline" json:"presence"`

	User User `gorm:"foreignKey:UserUUID;references:UUID" json:"user"`
}
