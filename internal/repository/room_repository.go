package repository

import (
	"collabroom/internal/entity"

	"gorm.io/gorm"
)

type RoomRepository interface {
	Create(room *entity.Room) error
	GetByUUID(uuid entity.UUID) (*entity.Room, error)
	GetByJoinCode(joinCode string) (*entity.Room, error)
	ListPublic() ([]*entity.Room, error)
	Update(uuid entity.UUID, name, description string) error

	// Delete cascades: memberships, files and messages of the room go with it.
	Delete(uuid entity.UUID) error
}

type SQLiteRoomRepository struct {
	db *gorm.DB
}

func NewSQLiteRoomRepository(db *gorm.DB) RoomRepository {
	return &SQLiteRoomRepository{db}
}

func (repo *SQLiteRoomRepository) Create(room *entity.Room) error {
	return repo.db.Create(room).Error
}

func (repo *SQLiteRoomRepository) GetByUUID(uuid entity.UUID) (*entity.Room, error) {
	var room entity.Room
	err := repo.db.First(&room, "uuid = ?", uuid).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (repo *SQLiteRoomRepository) GetByJoinCode(joinCode string) (*entity.Room, error) {
	var room entity.Room
	err := repo.db.First(&room, "join_code = ?", joinCode).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (repo *SQLiteRoomRepository) ListPublic() ([]*entity.Room, error) {
	var rooms []*entity.Room
	err := repo.db.Where("visibility = ?", entity.VisibilityPublic).Order("created_at ASC").Find(&rooms).Error
	return rooms, err
}

func (repo *SQLiteRoomRepository) Update(uuid entity.UUID, name, description string) error {
	return repo.db.Model(&entity.Room{}).Where("uuid = ?", uuid).
		Updates(map[string]any{"name": name, "description": description}).Error
}

func (repo *SQLiteRoomRepository) Delete(uuid entity.UUID) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_uuid = ?", uuid).Delete(&entity.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_uuid = ?", uuid).Delete(&entity.CodeFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_uuid = ?", uuid).Delete(&entity.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Room{}, "uuid = ?", uuid).Error
	})
}
