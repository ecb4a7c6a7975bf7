// Package service sequences every mutation: validate, apply to the store,
// then broadcast. A per-household lock spans the store call and the
// broadcast, so events are published in the same order their mutations were
// accepted, and a client that re-fetches on receipt of an event observes at
// least the version the event describes.
package service

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"larder/internal/database"
	"larder/internal/etag"
	"larder/internal/models"
	"larder/internal/monitoring"
	"larder/internal/store"
)

// Publisher is the fan-out side the coordinator pushes accepted mutations to
type Publisher interface {
	Publish(householdID string, event models.ChangeEvent)
}

// Membership answers whether a user may touch a household. Backed by the
// database layer; the identity itself comes from the auth collaborator.
type Membership interface {
	IsMember(userID, householdID string) (bool, error)
}

// WasteLog records accepted waste mutations for downstream reporting
type WasteLog interface {
	RecordWaste(record models.WasteRecord) error
	WasteSince(householdID string, cutoff time.Time) ([]models.WasteRecord, error)
}

// ShoppingList is the persisted list store the list collaborators use
type ShoppingList interface {
	AddListEntry(householdID, name string, quantity float64, unit, addedBy string) (*models.ShoppingListEntry, error)
	UpdateListEntry(householdID, entryID string, patch database.ListEntryPatch) (*models.ShoppingListEntry, error)
	DeleteListEntry(householdID, entryID string) (*models.ShoppingListEntry, error)
	ListEntries(householdID string) ([]models.ShoppingListEntry, error)
}

// Coordinator is the single entry point handlers call for mutations.
// Store failures are returned unchanged and suppress the broadcast.
type Coordinator struct {
	store    *store.ItemStore
	hub      Publisher
	wasteLog WasteLog
	lists    ShoppingList
	monitor  *monitoring.Monitor
	metrics  *monitoring.MetricsCollector

	// locksMu guards locks; each household's lock serializes the
	// mutate-then-publish sequence for that household.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewCoordinator wires the coordinator's collaborators together
func NewCoordinator(items *store.ItemStore, hub Publisher, wasteLog WasteLog, lists ShoppingList, monitor *monitoring.Monitor, metrics *monitoring.MetricsCollector) *Coordinator {
	return &Coordinator{
		store:    items,
		hub:      hub,
		wasteLog: wasteLog,
		lists:    lists,
		monitor:  monitor,
		metrics:  metrics,
		locks:    make(map[string]*sync.Mutex),
	}
}

// householdLock returns the lock serializing mutations and their broadcasts
// for one household. Held across the store call and the publish: the store
// alone orders acceptance, but without this lock a second writer could
// publish before the first, and subscribers would see events out of
// acceptance order.
func (c *Coordinator) householdLock(householdID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	lock, ok := c.locks[householdID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[householdID] = lock
	}
	return lock
}

// AddItem creates an item and broadcasts item.added carrying the full item
func (c *Coordinator) AddItem(householdID, actorID string, fields models.NewItemFields) (*models.InventoryItem, error) {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	item, err := c.store.Create(householdID, fields)
	c.record("create", err)
	if err != nil {
		return nil, err
	}

	event := models.NewChangeEvent(models.EventItemAdded, householdID, item.ID, actorID)
	event.Payload.Item = item
	c.publish(householdID, event)
	return item, nil
}

// GetItem reads one item with its current version token
func (c *Coordinator) GetItem(householdID, itemID string) (*models.InventoryItem, string, error) {
	item, err := c.store.Get(householdID, itemID)
	if err != nil {
		return nil, "", err
	}
	return item, etag.Encode(item.Version), nil
}

// ListItems reads the household's full inventory
func (c *Coordinator) ListItems(householdID string) []models.InventoryItem {
	return c.store.List(householdID)
}

// UpdateItem applies a field patch under the If-Match precondition and
// broadcasts item.updated carrying exactly the applied changes. A stale
// token returns store.ErrConflict along with the current item state so the
// caller can surface the live token; no event is published.
func (c *Coordinator) UpdateItem(householdID, itemID, presentedToken, actorID string, patch models.ItemPatch) (*store.UpdateResult, error) {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	result, err := c.store.Update(householdID, itemID, presentedToken, patch)
	c.record("update", err)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.metrics.RecordConflict()
		}
		return result, err
	}

	event := models.NewChangeEvent(models.EventItemUpdated, householdID, itemID, actorID)
	event.Payload.Changes = result.Changes
	c.publish(householdID, event)
	return result, nil
}

// ConsumeItem decrements quantity. Reaching zero deletes the item and the
// broadcast is item.deleted, not item.updated.
func (c *Coordinator) ConsumeItem(householdID, itemID string, quantity float64, actorID string) (*store.QuantityChange, error) {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	change, err := c.store.Consume(householdID, itemID, quantity)
	c.record("consume", err)
	if err != nil {
		return nil, err
	}

	c.publishQuantityChange(householdID, itemID, actorID, change)
	return change, nil
}

// WasteItem has consume semantics plus a required reason, appended to the
// waste log before the broadcast
func (c *Coordinator) WasteItem(householdID, itemID string, quantity float64, reason, notes, actorID string) (*store.QuantityChange, error) {
	if reason == "" {
		err := fmt.Errorf("%w: waste reason must not be empty", store.ErrValidation)
		c.record("waste", err)
		return nil, err
	}

	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	change, err := c.store.Waste(householdID, itemID, quantity)
	c.record("waste", err)
	if err != nil {
		return nil, err
	}

	// The audit trail is best-effort: the in-memory mutation is already
	// durable, so a failed append is logged rather than unwound.
	record := models.WasteRecord{
		HouseholdID: householdID,
		ItemID:      itemID,
		ItemName:    change.Item.Name,
		Quantity:    change.Taken,
		Unit:        change.Item.Unit,
		Reason:      reason,
		Notes:       notes,
		WastedBy:    actorID,
		WastedAt:    time.Now().UTC(),
	}
	if err := c.wasteLog.RecordWaste(record); err != nil {
		log.Printf("Failed to record waste for item %s: %v", itemID, err)
	}

	c.publishQuantityChange(householdID, itemID, actorID, change)
	return change, nil
}

// DeleteItem removes the item unconditionally and broadcasts item.deleted
func (c *Coordinator) DeleteItem(householdID, itemID, actorID string) error {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	_, err := c.store.Delete(householdID, itemID)
	c.record("delete", err)
	if err != nil {
		return err
	}

	c.publish(householdID, models.NewChangeEvent(models.EventItemDeleted, householdID, itemID, actorID))
	return nil
}

// WasteReport returns the household's waste log at or after the cutoff
func (c *Coordinator) WasteReport(householdID string, cutoff time.Time) ([]models.WasteRecord, error) {
	return c.wasteLog.WasteSince(householdID, cutoff)
}

// Shopping list operations. Same sequencing rule: persist first, then
// broadcast the list event variant through the same hub.

func (c *Coordinator) AddListEntry(householdID, name string, quantity float64, unit, actorID string) (*models.ShoppingListEntry, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
	}
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.lists.AddListEntry(householdID, name, quantity, unit, actorID)
	c.record("list_add", err)
	if err != nil {
		return nil, err
	}

	event := models.NewChangeEvent(models.EventListAdded, householdID, entry.EntryID, actorID)
	event.Payload.ListEntry = entry
	c.publish(householdID, event)
	return entry, nil
}

func (c *Coordinator) UpdateListEntry(householdID, entryID, actorID string, patch database.ListEntryPatch) (*models.ShoppingListEntry, error) {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.lists.UpdateListEntry(householdID, entryID, patch)
	c.record("list_update", err)
	if err != nil {
		return nil, err
	}

	event := models.NewChangeEvent(models.EventListUpdated, householdID, entryID, actorID)
	event.Payload.ListEntry = entry
	c.publish(householdID, event)
	return entry, nil
}

func (c *Coordinator) DeleteListEntry(householdID, entryID, actorID string) error {
	lock := c.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	_, err := c.lists.DeleteListEntry(householdID, entryID)
	c.record("list_delete", err)
	if err != nil {
		return err
	}

	c.publish(householdID, models.NewChangeEvent(models.EventListDeleted, householdID, entryID, actorID))
	return nil
}

func (c *Coordinator) ListEntries(householdID string) ([]models.ShoppingListEntry, error) {
	return c.lists.ListEntries(householdID)
}

// publishQuantityChange broadcasts the right variant for a consume/waste:
// deletion when the item reached zero, otherwise an update carrying the new
// quantity. Built from the store's result, never from a re-fetch.
func (c *Coordinator) publishQuantityChange(householdID, itemID, actorID string, change *store.QuantityChange) {
	if change.Deleted {
		c.publish(householdID, models.NewChangeEvent(models.EventItemDeleted, householdID, itemID, actorID))
		return
	}
	event := models.NewChangeEvent(models.EventItemUpdated, householdID, itemID, actorID)
	event.Payload.Changes = map[string]interface{}{"quantity": change.Item.Quantity}
	c.publish(householdID, event)
}

func (c *Coordinator) publish(householdID string, event models.ChangeEvent) {
	c.hub.Publish(householdID, event)
	c.monitor.RecordEvent(string(event.Type))
	c.metrics.RecordEventPublished(string(event.Type))
}

func (c *Coordinator) record(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, database.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, store.ErrInsufficientQuantity):
		outcome = "insufficient"
	case errors.Is(err, store.ErrValidation), errors.Is(err, etag.ErrMalformedToken):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	c.monitor.RecordMutation(operation, outcome)
	c.metrics.RecordMutation(operation, outcome)
}
