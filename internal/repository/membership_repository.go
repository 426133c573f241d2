package repository

import (
	"collabroom/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository interface {
	Create(membership *entity.Membership) error
	Get(roomUUID, userUUID entity.UUID) (*entity.Membership, error)
	GetRoster(roomUUID entity.UUID) ([]*entity.Membership, error)
	CountByRoom(roomUUID entity.UUID) (int64, error)
	SetPresence(roomUUID, userUUID entity.UUID, presence string) error
	Delete(roomUUID, userUUID entity.UUID) error
}

type SQLiteMembershipRepository struct {
	db *gorm.DB
}

func NewSQLiteMembershipRepository(db *gorm.DB) MembershipRepository {
	return &SQLiteMembershipRepository{db}
}

// Create is idempotent: joining a room twice leaves the original row alone.
func (repo *SQLiteMembershipRepository) Create(membership *entity.Membership) error {
	return repo.db.Clauses(clause.OnConflict{DoNothing: true}).Create(membership).Error
}

func (repo *SQLiteMembershipRepository) Get(roomUUID, userUUID entity.UUID) (*entity.Membership, error) {
	var membership entity.Membership
	err := repo.db.Preload("User").
		First(&membership, "room_uuid = ? AND user_uuid = ?", roomUUID, userUUID).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (repo *SQLiteMembershipRepository) GetRoster(roomUUID entity.UUID) ([]*entity.Membership, error) {
	var roster []*entity.Membership
	err := repo.db.Preload("User").
		Where("room_uuid = ?", roomUUID).Order("joined_at ASC").Find(&roster).Error
	return roster, err
}

func (repo *SQLiteMembershipRepository) CountByRoom(roomUUID entity.UUID) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Membership{}).Where("room_uuid = ?", roomUUID).Count(&count).Error
	return count, err
}

func (repo *SQLiteMembershipRepository) SetPresence(roomUUID, userUUID entity.UUID, presence string) error {
	return repo.db.Model(&entity.Membership{}).
		Where("room_uuid = ? AND user_uuid = ?", roomUUID, userUUID).
		Update("presence", presence).Error
}

func (repo *SQLiteMembershipRepository) Delete(roomUUID, userUUID entity.UUID) error {
	return repo.db.Delete(&entity.Membership{}, "room_uuid = ? AND user_uuid = ?", roomUUID, userUUID).Error
}
