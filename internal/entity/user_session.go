package entity

import (
	"time"

	"gorm.io/gorm"
)

// UserSession is one refresh credential. Access tokens are stateless JWTs;
// only the refresh half is persisted so it can be revoked.
type UserSession struct {
	Token     string         `gorm:"primaryKey"`
	UserUUID  UUID           `gorm:"not null;index"`
	CreatedAt time.Time      `gorm:"not null;index"`
	ExpiresAt time.Time      `gorm:"not null;index"`
	RevokedAt gorm.DeletedAt `gorm:"index"`
}
