package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Household is the tenancy boundary. Items, subscriptions, shopping lists
// and events are all scoped to exactly one household.
type Household struct {
	gorm.Model
	HouseholdID string `gorm:"unique_index" json:"householdId"`
	Name        string `json:"name"`
}

// HouseholdMember links a user to a household they belong to
type HouseholdMember struct {
	gorm.Model
	HouseholdID string `gorm:"index" json:"householdId"`
	UserID      string `gorm:"index" json:"userId"`
	Role        string `json:"role"`
}

// Member roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// ShoppingListEntry is one line on a household's shopping list,
// persisted through gorm rather than held by the in-memory item store.
type ShoppingListEntry struct {
	gorm.Model
	EntryID     string  `gorm:"unique_index" json:"entryId"`
	HouseholdID string  `gorm:"index" json:"householdId"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	Checked     bool    `json:"checked"`
	AddedBy     string  `json:"addedBy"`
}

// WasteRecord is the audit trail behind waste reporting. Every accepted
// waste mutation appends one row, including the ones that deleted the item.
type WasteRecord struct {
	gorm.Model
	HouseholdID string    `gorm:"index" json:"householdId"`
	ItemID      string    `json:"itemId"`
	ItemName    string    `json:"itemName"`
	Quantity    float64   `json:"quantity"`
	Unit        string    `json:"unit,omitempty"`
	Reason      string    `json:"reason"`
	Notes       string    `json:"notes,omitempty"`
	WastedBy    string    `json:"wastedBy"`
	WastedAt    time.Time `json:"wastedAt"`
}
