package models

import "time"

// InventoryItem represents a single tracked item in a household's storage.
// The store is the sole owner of item lifetime; everything handed out to
// callers is a copy.
type InventoryItem struct {
	ID             string     `json:"id"`
	HouseholdID    string     `json:"householdId"`
	Name           string     `json:"name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	Location       string     `json:"location"`
	Category       string     `json:"category,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	BestBeforeDate *time.Time `json:"bestBeforeDate,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// StorageLocation represents where in the household an item is kept
type StorageLocation string

const (
	// Storage locations
	LocationFridge  StorageLocation = "fridge"
	LocationFreezer StorageLocation = "freezer"
	LocationPantry  StorageLocation = "pantry"
)

// ValidLocation reports whether s names one of the allowed storage locations
func ValidLocation(s string) bool {
	switch StorageLocation(s) {
	case LocationFridge, LocationFreezer, LocationPantry:
		return true
	}
	return false
}

// ItemPatch carries the fields an update request may change. Nil pointers
// mean "leave as is", so a quantity of 0 stays distinguishable from absent.
type ItemPatch struct {
	Name           *string    `json:"name,omitempty"`
	Quantity       *float64   `json:"quantity,omitempty"`
	Unit           *string    `json:"unit,omitempty"`
	Location       *string    `json:"location,omitempty"`
	Category       *string    `json:"category,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	BestBeforeDate *time.Time `json:"bestBeforeDate,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Empty reports whether the patch would change nothing
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Quantity == nil && p.Unit == nil &&
		p.Location == nil && p.Category == nil &&
		p.ExpirationDate == nil && p.BestBeforeDate == nil && p.Notes == nil
}

// NewItemFields holds the caller-supplied fields for item creation
type NewItemFields struct {
	Name           string     `json:"name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	Location       string     `json:"location"`
	Category       string     `json:"category,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	BestBeforeDate *time.Time `json:"bestBeforeDate,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}
