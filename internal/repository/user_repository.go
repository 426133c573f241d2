package repository

import (
	"collabroom/internal/entity"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *entity.User) error
	GetByUUID(uuid entity.UUID) (*entity.User, error)
	GetForLogin(username string) (*entity.User, error)
	UpdateAvatar(uuid entity.UUID, avatarRef string) error
}

type SQLiteUserRepository struct {
	db *gorm.DB
}

func NewSQLiteUserRepository(db *gorm.DB) UserRepository {
	return &SQLiteUserRepository{db}
}

func (repo *SQLiteUserRepository) Create(user *entity.User) error {
	return repo.db.Create(user).Error
}

func (repo *SQLiteUserRepository) GetByUUID(uuid entity.UUID) (*entity.User, error) {
	var user entity.User
	err := repo.db.First(&user, "uuid = ?", uuid).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetForLogin preloads the secret so the caller can verify the password.
func (repo *SQLiteUserRepository) GetForLogin(username string) (*entity.User, error) {
	var user entity.User
	err := repo.db.Preload("Secret").First(&user, "username = ?", username).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLiteUserRepository) UpdateAvatar(uuid entity.UUID, avatarRef string) error {
	return repo.db.Model(&entity.User{}).Where("uuid = ?", uuid).Update("avatar_ref", avatarRef).Error
}
