package repository

import (
	"collabroom/internal/entity"

	"gorm.io/gorm"
)

type FileRepository interface {
	Create(file *entity.CodeFile) error
	GetByUUID(uuid entity.UUID) (*entity.CodeFile, error)
	ListByRoom(roomUUID entity.UUID) ([]*entity.CodeFile, error)
	UpdateContent(uuid entity.UUID, content string) error
	Delete(uuid entity.UUID) error
}

type SQLiteFileRepository struct {
	db *gorm.DB
}

func NewSQLiteFileRepository(db *gorm.DB) FileRepository {
	return &SQLiteFileRepository{db}
}

func (repo *SQLiteFileRepository) Create(file *entity.CodeFile) error {
	return repo.db.Create(file).Error
}

func (repo *SQLiteFileRepository) GetByUUID(uuid entity.UUID) (*entity.CodeFile, error) {
	var file entity.CodeFile
	err := repo.db.First(&file, "uuid = ?", uuid).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (repo *SQLiteFileRepository) ListByRoom(roomUUID entity.UUID) ([]*entity.CodeFile, error) {
	var files []*entity.CodeFile
	err := repo.db.Where("room_uuid = ?", roomUUID).Order("updated_at ASC").Find(&files).Error
	return files, err
}

func (repo *SQLiteFileRepository) UpdateContent(uuid entity.UUID, content string) error {
	return repo.db.Model(&entity.CodeFile{}).Where("uuid = ?", uuid).Update("content", content).Error
}

func (repo *SQLiteFileRepository) Delete(uuid entity.UUID) error {
	return repo.db.Delete(&entity.CodeFile{}, "uuid = ?", uuid).Error
}
