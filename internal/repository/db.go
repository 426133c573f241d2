package repository

import (
	"collabroom/internal/entity"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenDatabase(dbName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.UserSecret{},
		&entity.UserSession{},
		&entity.Room{},
		&entity.Membership{},
		&entity.CodeFile{},
		&entity.ChatMessage{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
