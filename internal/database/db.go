package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

// ErrVersionConflict is returned when a version-checked write loses the race
// against a concurrent update of the same inventory row.
var ErrVersionConflict = errors.New("inventory unit was modified concurrently")

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		log.Fatal("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func MigrateAll(db *gorm.DB) error {
	db.AutoMigrate(&models.User{})
	db.AutoMigrate(&models.Product{})
	db.AutoMigrate(&models.Package{})
	db.AutoMigrate(&models.Customer{})
	db.AutoMigrate(&models.InventoryUnit{})
	db.AutoMigrate(&models.Order{})
	return nil
}

// SaveUnitVersioned writes the unit back with an optimistic version check.
// Two writers racing on the same unit cannot both succeed; the loser gets
// ErrVersionConflict and must reload and retry.
func SaveUnitVersioned(tx *gorm.DB, unit *models.InventoryUnit) error {
	prev := unit.Version
	unit.Version = prev + 1

	res := tx.Model(&models.InventoryUnit{}).
		Where("id = ? AND version = ?", unit.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(unit)
	if res.Error != nil {
		unit.Version = prev
		return res.Error
	}
	if res.RowsAffected != 1 {
		unit.Version = prev
		return ErrVersionConflict
	}
	return nil
}
