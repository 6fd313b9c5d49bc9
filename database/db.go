package database

import (
	"fmt"
	"log"

	"disaster-posts-viewer/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the SQLite file at path and migrates the preference table
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&models.Preference{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Println("Database connected successfully")
	return db, nil
}
