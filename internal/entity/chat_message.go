package entity

import "time"

// ChatMessage is append-only: never mutated or deleted once stored.
// The UUID may be assigned client-side so the realtime path and the
// durable path carry the same identity.
type ChatMessage struct {
	UUID      UUID      `gorm:"primaryKey" json:"id"`
	RoomUUID  UUID      `gorm:"not null;index" json:"roomId"`
	UserUUID  UUID      `gorm:"not null;index" json:"userId"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// Before reports whether m sorts before other in the room transcript.
// Total order: CreatedAt, then UUID for ties.
func (m *ChatMessage) Before(other *ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.UUID < other.UUID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
