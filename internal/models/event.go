package models

import "time"

// EventType identifies one variant of the closed set of change events
type EventType string

const (
	// Inventory item events
	EventItemAdded   EventType = "item.added"
	EventItemUpdated EventType = "item.updated"
	EventItemDeleted EventType = "item.deleted"

	// Shopping list events
	EventListAdded   EventType = "list.added"
	EventListUpdated EventType = "list.updated"
	EventListDeleted EventType = "list.deleted"
)

// ChangeEvent is the envelope pushed to every session subscribed to the
// affected household. One accepted mutation produces exactly one event.
type ChangeEvent struct {
	Type        EventType    `json:"type"`
	HouseholdID string       `json:"householdId"`
	Payload     EventPayload `json:"payload"`
}

// EventPayload carries the change itself. Item is set for additions,
// Changes for updates; deletions carry neither.
type EventPayload struct {
	ItemID    string                 `json:"itemId"`
	Item      *InventoryItem         `json:"item,omitempty"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	ListEntry *ShoppingListEntry     `json:"listEntry,omitempty"`
	UpdatedBy string                 `json:"updatedBy"`
	Timestamp string                 `json:"timestamp"`
}

// NewChangeEvent builds an event envelope with the timestamp set to now
func NewChangeEvent(eventType EventType, householdID, itemID, actorID string) ChangeEvent {
	return ChangeEvent{
		Type:        eventType,
		HouseholdID: householdID,
		Payload: EventPayload{
			ItemID:    itemID,
			UpdatedBy: actorID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
