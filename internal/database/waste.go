package database

import (
	"time"

	"larder/internal/models"
)

// RecordWaste appends one row to the waste audit log
func (d *DB) RecordWaste(record models.WasteRecord) error {
	return d.conn.Create(&record).Error
}

// WasteSince returns the household's waste records at or after the cutoff,
// newest first. A zero cutoff returns everything.
func (d *DB) WasteSince(householdID string, cutoff time.Time) ([]models.WasteRecord, error) {
	query := d.conn.Where("household_id = ?", householdID)
	if !cutoff.IsZero() {
		query = query.Where("wasted_at >= ?", cutoff)
	}

	var records []models.WasteRecord
	if err := query.Order("wasted_at desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
