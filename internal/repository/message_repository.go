package repository

import (
	"collabroom/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// Create is idempotent on the message UUID: the realtime path and the
	// durable backup path may both try to store the same message.
	Create(message *entity.ChatMessage) error

	// GetPage returns `limit` messages of the room transcript, skipping the
	// `offset` most recent ones, in ascending (createdAt, uuid) order, plus
	// whether older messages remain beyond the page.
	GetPage(roomUUID entity.UUID, limit, offset int) ([]*entity.ChatMessage, bool, error)
}

type SQLiteMessageRepository struct {
	db *gorm.DB
}

func NewSQLiteMessageRepository(db *gorm.DB) MessageRepository {
	return &SQLiteMessageRepository{db}
}

func (repo *SQLiteMessageRepository) Create(message *entity.ChatMessage) error {
	return repo.db.Clauses(clause.OnConflict{DoNothing: true}).Create(message).Error
}

func (repo *SQLiteMessageRepository) GetPage(roomUUID entity.UUID, limit, offset int) ([]*entity.ChatMessage, bool, error) {
	var page []*entity.ChatMessage

	// One extra row tells us whether there is an older page.
	err := repo.db.Where("room_uuid = ?", roomUUID).
		Order("created_at DESC").Order("uuid DESC").
		Offset(offset).Limit(limit + 1).
		Find(&page).Error
	if err != nil {
		return nil, false, err
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	// Reverse into transcript order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	return page, hasMore, nil
}
