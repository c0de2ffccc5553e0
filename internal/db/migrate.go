package db

import (
	"fmt"

	"github.com/zulandar/scrumban/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model in dependency order (parents first).
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Board{},
		&models.Column{},
		&models.Sprint{},
		&models.Tag{},
		&models.Task{},
		&models.Subtask{},
		&models.Comment{},
		&models.Activity{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenMemory returns a migrated in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	gdb, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
