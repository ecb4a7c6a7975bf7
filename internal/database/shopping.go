package database

import (
	"larder/internal/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// ListEntryPatch carries the fields a shopping-list update may change
type ListEntryPatch struct {
	Name     *string  `json:"name,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
	Checked  *bool    `json:"checked,omitempty"`
}

// AddListEntry inserts a new shopping-list line for the household
func (d *DB) AddListEntry(householdID, name string, quantity float64, unit, addedBy string) (*models.ShoppingListEntry, error) {
	entry := models.ShoppingListEntry{
		EntryID:     uuid.NewString(),
		HouseholdID: householdID,
		Name:        name,
		Quantity:    quantity,
		Unit:        unit,
		AddedBy:     addedBy,
	}
	if err := d.conn.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateListEntry applies a patch to one entry
func (d *DB) UpdateListEntry(householdID, entryID string, patch ListEntryPatch) (*models.ShoppingListEntry, error) {
	entry, err := d.findListEntry(householdID, entryID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		entry.Name = *patch.Name
	}
	if patch.Quantity != nil {
		entry.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		entry.Unit = *patch.Unit
	}
	if patch.Checked != nil {
		entry.Checked = *patch.Checked
	}

	if err := d.conn.Save(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteListEntry removes one entry
func (d *DB) DeleteListEntry(householdID, entryID string) (*models.ShoppingListEntry, error) {
	entry, err := d.findListEntry(householdID, entryID)
	if err != nil {
		return nil, err
	}
	if err := d.conn.Delete(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns the household's shopping list, oldest first
func (d *DB) ListEntries(householdID string) ([]models.ShoppingListEntry, error) {
	var entries []models.ShoppingListEntry
	err := d.conn.Where("household_id = ?", householdID).
		Order("created_at asc").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DB) findListEntry(householdID, entryID string) (*models.ShoppingListEntry, error) {
	var entry models.ShoppingListEntry
	err := d.conn.Where("household_id = ? AND entry_id = ?", householdID, entryID).
		First(&entry).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
