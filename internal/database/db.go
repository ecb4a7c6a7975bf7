// Package database holds the persisted side of the tracker: households and
// membership, shopping lists, and the waste audit log. Inventory items
// themselves stay in the in-memory store; nothing here touches them.
package database

import (
	"errors"
	"fmt"

	"larder/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/jinzhu/gorm/dialects/sqlite"   // SQLite dialect
)

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = errors.New("record not found")

// DB wraps the gorm connection. Constructed once in main and injected,
// never held as package state.
type DB struct {
	conn *gorm.DB
}

// Open initializes the database connection. Supported drivers are
// "sqlite3" and "postgres".
func Open(driver, dsn string) (*DB, error) {
	conn, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Migrate creates and updates all required tables, then ensures default
// data exists
func (d *DB) Migrate() error {
	if err := d.conn.AutoMigrate(
		&models.Household{},
		&models.HouseholdMember{},
		&models.ShoppingListEntry{},
		&models.WasteRecord{},
	).Error; err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return d.seedDefaultData()
}

// seedDefaultData ensures a household exists so a fresh install is usable
func (d *DB) seedDefaultData() error {
	var householdCount int64
	d.conn.Model(&models.Household{}).Count(&householdCount)
	if householdCount > 0 {
		return nil
	}

	household := models.Household{HouseholdID: "default", Name: "Home"}
	if err := d.conn.Create(&household).Error; err != nil {
		return err
	}
	member := models.HouseholdMember{
		HouseholdID: household.HouseholdID,
		UserID:      "admin",
		Role:        models.RoleOwner,
	}
	return d.conn.Create(&member).Error
}

// Close closes the database connection
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
