package repository

import (
	"time"

	"collabroom/internal/entity"

	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(session *entity.UserSession) error
	Get(token string) (*entity.UserSession, error)
	Revoke(token string) error
	RevokeAllForUser(uuid entity.UUID) error
}

type SQLiteSessionRepository struct {
	db *gorm.DB
}

func NewSQLiteSessionRepository(db *gorm.DB) SessionRepository {
	return &SQLiteSessionRepository{db}
}

func (repo *SQLiteSessionRepository) Create(session *entity.UserSession) error {
	return repo.db.Create(session).Error
}

// Get returns only sessions that are neither revoked nor expired.
func (repo *SQLiteSessionRepository) Get(token string) (*entity.UserSession, error) {
	var session entity.UserSession
	err := repo.db.Where("expires_at > ?", time.Now()).First(&session, "token = ?", token).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (repo *SQLiteSessionRepository) Revoke(token string) error {
	return repo.db.Delete(&entity.UserSession{}, "token = ?", token).Error
}

func (repo *SQLiteSessionRepository) RevokeAllForUser(uuid entity.UUID) error {
	return repo.db.Delete(&entity.UserSession{}, "user_uuid = ?", uuid).Error
}
