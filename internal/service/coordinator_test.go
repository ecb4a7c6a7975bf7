package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"larder/internal/database"
	"larder/internal/etag"
	"larder/internal/models"
	"larder/internal/monitoring"
	"larder/internal/store"

	"github.com/google/uuid"
)

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (f *fakePublisher) Publish(householdID string, event models.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) last(t *testing.T) models.ChangeEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatal("expected at least one published event")
	}
	return f.events[len(f.events)-1]
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeWasteLog keeps records in memory
type fakeWasteLog struct {
	records []models.WasteRecord
}

func (f *fakeWasteLog) RecordWaste(record models.WasteRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeWasteLog) WasteSince(householdID string, cutoff time.Time) ([]models.WasteRecord, error) {
	var out []models.WasteRecord
	for _, record := range f.records {
		if record.HouseholdID == householdID && !record.WastedAt.Before(cutoff) {
			out = append(out, record)
		}
	}
	return out, nil
}

// fakeLists keeps shopping-list entries in memory
type fakeLists struct {
	entries map[string]*models.ShoppingListEntry
}

func newFakeLists() *fakeLists {
	return &fakeLists{entries: make(map[string]*models.ShoppingListEntry)}
}

func (f *fakeLists) AddListEntry(householdID, name string, quantity float64, unit, addedBy string) (*models.ShoppingListEntry, error) {
	entry := &models.ShoppingListEntry{
		EntryID:     uuid.NewString(),
		HouseholdID: householdID,
		Name:        name,
		Quantity:    quantity,
		Unit:        unit,
		AddedBy:     addedBy,
	}
	f.entries[entry.EntryID] = entry
	return entry, nil
}

func (f *fakeLists) UpdateListEntry(householdID, entryID string, patch database.ListEntryPatch) (*models.ShoppingListEntry, error) {
	entry, ok := f.entries[entryID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if patch.Checked != nil {
		entry.Checked = *patch.Checked
	}
	if patch.Name != nil {
		entry.Name = *patch.Name
	}
	return entry, nil
}

func (f *fakeLists) DeleteListEntry(householdID, entryID string) (*models.ShoppingListEntry, error) {
	entry, ok := f.entries[entryID]
	if !ok {
		return nil, database.ErrNotFound
	}
	delete(f.entries, entryID)
	return entry, nil
}

func (f *fakeLists) ListEntries(householdID string) ([]models.ShoppingListEntry, error) {
	var out []models.ShoppingListEntry
	for _, entry := range f.entries {
		out = append(out, *entry)
	}
	return out, nil
}

func newTestCoordinator() (*Coordinator, *fakePublisher, *fakeWasteLog) {
	publisher := &fakePublisher{}
	wasteLog := &fakeWasteLog{}
	coordinator := NewCoordinator(
		store.NewItemStore(),
		publisher,
		wasteLog,
		newFakeLists(),
		monitoring.NewMonitor(),
		monitoring.NewMetricsCollector(),
	)
	return coordinator, publisher, wasteLog
}

func milkFields(quantity float64) models.NewItemFields {
	return models.NewItemFields{Name: "Milk", Quantity: quantity, Unit: "l", Location: "fridge"}
}

func TestAddItemPublishesItemAdded(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()

	item, err := coordinator.AddItem("house-1", "alice", milkFields(2))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if publisher.count() != 1 {
		t.Fatalf("expected exactly one event, got %d", publisher.count())
	}
	event := publisher.last(t)
	if event.Type != models.EventItemAdded {
		t.Errorf("expected item.added, got %s", event.Type)
	}
	if event.HouseholdID != "house-1" {
		t.Errorf("expected household house-1, got %s", event.HouseholdID)
	}
	if event.Payload.Item == nil || event.Payload.Item.ID != item.ID {
		t.Error("expected the payload to carry the created item")
	}
	if event.Payload.UpdatedBy != "alice" {
		t.Errorf("expected actor alice, got %s", event.Payload.UpdatedBy)
	}
	if event.Payload.Timestamp == "" {
		t.Error("expected a timestamp on the payload")
	}
}

func TestAddItemValidationPublishesNothing(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()

	_, err := coordinator.AddItem("house-1", "alice", models.NewItemFields{Name: "", Quantity: 1, Location: "fridge"})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if publisher.count() != 0 {
		t.Errorf("failed mutation must publish nothing, got %d events", publisher.count())
	}
}

func TestUpdateItemPublishesChangesOnly(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))

	quantity := 1.0
	result, err := coordinator.UpdateItem("house-1", item.ID, etag.Encode(1), "bob", models.ItemPatch{Quantity: &quantity})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if result.Item.Version != 2 {
		t.Errorf("expected version 2, got %d", result.Item.Version)
	}

	event := publisher.last(t)
	if event.Type != models.EventItemUpdated {
		t.Errorf("expected item.updated, got %s", event.Type)
	}
	if event.Payload.Changes["quantity"] != 1.0 {
		t.Errorf("expected changes to carry the applied patch, got %v", event.Payload.Changes)
	}
	if event.Payload.Item != nil {
		t.Error("update events carry changes, not the full item")
	}
}

func TestUpdateItemConflictPublishesNothing(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))

	stale := etag.Encode(1)
	quantity := 1.0
	if _, err := coordinator.UpdateItem("house-1", item.ID, stale, "alice", models.ItemPatch{Quantity: &quantity}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	published := publisher.count()

	result, err := coordinator.UpdateItem("house-1", item.ID, stale, "bob", models.ItemPatch{Quantity: &quantity})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if result == nil || result.Item.Version != 2 {
		t.Error("conflict should carry the current state for the caller to re-fetch from")
	}
	if publisher.count() != published {
		t.Error("rejected update must not publish")
	}
}

func TestConsumePartialPublishesUpdated(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))

	change, err := coordinator.ConsumeItem("house-1", item.ID, 1, "bob")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if change.Deleted {
		t.Fatal("partial consume must not delete")
	}

	event := publisher.last(t)
	if event.Type != models.EventItemUpdated {
		t.Errorf("expected item.updated, got %s", event.Type)
	}
	if event.Payload.Changes["quantity"] != 1.0 {
		t.Errorf("expected new quantity 1 in changes, got %v", event.Payload.Changes)
	}
}

func TestConsumeToZeroPublishesDeleted(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(1))

	change, err := coordinator.ConsumeItem("house-1", item.ID, 1, "bob")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if !change.Deleted {
		t.Fatal("expected deletion at zero quantity")
	}

	event := publisher.last(t)
	if event.Type != models.EventItemDeleted {
		t.Errorf("consuming to zero must broadcast item.deleted, got %s", event.Type)
	}

	if _, _, err := coordinator.GetItem("house-1", item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after consume-to-zero, got %v", err)
	}
}

func TestConsumeInsufficientPublishesNothing(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(1))
	published := publisher.count()

	if _, err := coordinator.ConsumeItem("house-1", item.ID, 5, "bob"); !errors.Is(err, store.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got %v", err)
	}
	if publisher.count() != published {
		t.Error("rejected consume must not publish")
	}
}

func TestWasteRecordsAuditTrail(t *testing.T) {
	coordinator, publisher, wasteLog := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))

	change, err := coordinator.WasteItem("house-1", item.ID, 1, "expired", "smelled off", "bob")
	if err != nil {
		t.Fatalf("waste failed: %v", err)
	}
	if change.Deleted {
		t.Fatal("partial waste must not delete")
	}

	if len(wasteLog.records) != 1 {
		t.Fatalf("expected one waste record, got %d", len(wasteLog.records))
	}
	record := wasteLog.records[0]
	if record.Reason != "expired" || record.Quantity != 1 || record.WastedBy != "bob" {
		t.Errorf("waste record not filled from the applied change: %+v", record)
	}

	if publisher.last(t).Type != models.EventItemUpdated {
		t.Errorf("expected item.updated, got %s", publisher.last(t).Type)
	}
}

func TestWasteRequiresReason(t *testing.T) {
	coordinator, publisher, wasteLog := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))
	published := publisher.count()

	if _, err := coordinator.WasteItem("house-1", item.ID, 1, "", "", "bob"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty reason, got %v", err)
	}
	if len(wasteLog.records) != 0 {
		t.Error("rejected waste must not be recorded")
	}
	if publisher.count() != published {
		t.Error("rejected waste must not publish")
	}
}

func TestWasteToZeroPublishesDeletedAndRecords(t *testing.T) {
	coordinator, publisher, wasteLog := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(1))

	change, err := coordinator.WasteItem("house-1", item.ID, 1, "moldy", "", "bob")
	if err != nil {
		t.Fatalf("waste failed: %v", err)
	}
	if !change.Deleted {
		t.Fatal("expected deletion at zero quantity")
	}
	if publisher.last(t).Type != models.EventItemDeleted {
		t.Errorf("wasting to zero must broadcast item.deleted, got %s", publisher.last(t).Type)
	}
	if len(wasteLog.records) != 1 {
		t.Errorf("expected the final waste to be recorded, got %d records", len(wasteLog.records))
	}
}

func TestDeleteItemPublishesDeleted(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(2))

	if err := coordinator.DeleteItem("house-1", item.ID, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if publisher.last(t).Type != models.EventItemDeleted {
		t.Errorf("expected item.deleted, got %s", publisher.last(t).Type)
	}

	if err := coordinator.DeleteItem("house-1", item.ID, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEveryAcceptedMutationPublishesExactlyOne(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()

	item, _ := coordinator.AddItem("house-1", "alice", milkFields(10))
	quantity := 8.0
	coordinator.UpdateItem("house-1", item.ID, etag.Encode(1), "alice", models.ItemPatch{Quantity: &quantity})
	coordinator.ConsumeItem("house-1", item.ID, 1, "bob")
	coordinator.WasteItem("house-1", item.ID, 1, "expired", "", "bob")
	coordinator.DeleteItem("house-1", item.ID, "alice")

	if publisher.count() != 5 {
		t.Errorf("expected 5 events for 5 accepted mutations, got %d", publisher.count())
	}
}

func TestConcurrentConsumeEventsMirrorAcceptanceOrder(t *testing.T) {
	initial := 40.0

	coordinator, publisher, _ := newTestCoordinator()
	item, err := coordinator.AddItem("house-1", "alice", milkFields(initial))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < int(initial); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := coordinator.ConsumeItem("house-1", item.ID, 1, "bob"); err != nil {
				t.Errorf("consume failed: %v", err)
			}
		}()
	}
	wg.Wait()

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	// events[0] is the item.added; the rest must mirror acceptance order:
	// quantities strictly decreasing by one, the deletion last.
	events := publisher.events[1:]
	if len(events) != int(initial) {
		t.Fatalf("expected %v consume events, got %d", initial, len(events))
	}
	for i, event := range events {
		want := initial - float64(i+1)
		if want == 0 {
			if event.Type != models.EventItemDeleted {
				t.Fatalf("final event must be item.deleted, got %s", event.Type)
			}
			continue
		}
		if event.Type != models.EventItemUpdated {
			t.Fatalf("event %d: expected item.updated, got %s", i, event.Type)
		}
		if got := event.Payload.Changes["quantity"]; got != want {
			t.Fatalf("event %d published out of acceptance order: quantity %v, want %v", i, got, want)
		}
	}
}

func TestShoppingListEvents(t *testing.T) {
	coordinator, publisher, _ := newTestCoordinator()

	entry, err := coordinator.AddListEntry("house-1", "Eggs", 12, "pc", "alice")
	if err != nil {
		t.Fatalf("add entry failed: %v", err)
	}
	if publisher.last(t).Type != models.EventListAdded {
		t.Errorf("expected list.added, got %s", publisher.last(t).Type)
	}
	if publisher.last(t).Payload.ListEntry == nil {
		t.Error("expected the payload to carry the list entry")
	}

	checked := true
	if _, err := coordinator.UpdateListEntry("house-1", entry.EntryID, "bob", database.ListEntryPatch{Checked: &checked}); err != nil {
		t.Fatalf("update entry failed: %v", err)
	}
	if publisher.last(t).Type != models.EventListUpdated {
		t.Errorf("expected list.updated, got %s", publisher.last(t).Type)
	}

	if err := coordinator.DeleteListEntry("house-1", entry.EntryID, "bob"); err != nil {
		t.Fatalf("delete entry failed: %v", err)
	}
	if publisher.last(t).Type != models.EventListDeleted {
		t.Errorf("expected list.deleted, got %s", publisher.last(t).Type)
	}
}

func TestWasteReport(t *testing.T) {
	coordinator, _, _ := newTestCoordinator()
	item, _ := coordinator.AddItem("house-1", "alice", milkFields(3))

	coordinator.WasteItem("house-1", item.ID, 1, "expired", "", "alice")
	coordinator.WasteItem("house-1", item.ID, 1, "freezer burn", "", "bob")

	records, err := coordinator.WasteReport("house-1", time.Time{})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 waste records, got %d", len(records))
	}
}
