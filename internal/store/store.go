// Package store owns the authoritative in-memory collection of inventory
// items, keyed by household. Every mutating operation runs to completion
// under one lock, so accepted mutations form a single sequence per household.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"larder/internal/etag"
	"larder/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the referenced item does not exist in the household
	ErrNotFound = errors.New("item not found")

	// ErrConflict means the presented version token is stale. Update returns
	// the current item alongside it so callers can expose the live ETag.
	ErrConflict = errors.New("version token does not match current item state")

	// ErrInsufficientQuantity means a consume or waste asked for more than
	// is available. The item is left untouched; there is no partial take.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrValidation wraps all bad-input failures
	ErrValidation = errors.New("invalid input")
)

// UpdateResult reports an accepted update: the new item state plus the
// fields that actually changed, keyed by their JSON names. The coordinator
// builds the broadcast payload from Changes rather than re-fetching.
type UpdateResult struct {
	Item    models.InventoryItem
	Changes map[string]interface{}
}

// QuantityChange reports an accepted consume or waste. Item is the state
// after the mutation; when Deleted is set the item reached zero and was
// removed, and Item is its final snapshot.
type QuantityChange struct {
	Item    models.InventoryItem
	Taken   float64
	Deleted bool
}

// ItemStore is the sole owner of item lifetime. All state handed out is
// copied, so callers can never mutate an item behind the store's back.
type ItemStore struct {
	mu         sync.RWMutex
	households map[string]map[string]*models.InventoryItem
}

// NewItemStore creates an empty store
func NewItemStore() *ItemStore {
	return &ItemStore{
		households: make(map[string]map[string]*models.InventoryItem),
	}
}

// Create validates fields, assigns a fresh id and version 1, and inserts
// the item. Creation takes no precondition: there is no prior state to
// conflict with.
func (s *ItemStore) Create(householdID string, fields models.NewItemFields) (*models.InventoryItem, error) {
	if fields.Name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if fields.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	if !models.ValidLocation(fields.Location) {
		return nil, fmt.Errorf("%w: unknown location %q", ErrValidation, fields.Location)
	}

	now := time.Now().UTC()
	item := &models.InventoryItem{
		ID:             uuid.NewString(),
		HouseholdID:    householdID,
		Name:           fields.Name,
		Quantity:       fields.Quantity,
		Unit:           fields.Unit,
		Location:       fields.Location,
		Category:       fields.Category,
		ExpirationDate: fields.ExpirationDate,
		BestBeforeDate: fields.BestBeforeDate,
		Notes:          fields.Notes,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.households[householdID]
	if !ok {
		items = make(map[string]*models.InventoryItem)
		s.households[householdID] = items
	}
	items[item.ID] = item

	copied := *item
	return &copied, nil
}

// Get returns a copy of the item, or ErrNotFound
func (s *ItemStore) Get(householdID, itemID string) (*models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.lookup(householdID, itemID)
	if err != nil {
		return nil, err
	}
	copied := *item
	return &copied, nil
}

// List returns copies of every item in the household, oldest first
func (s *ItemStore) List(householdID string) []models.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.InventoryItem, 0, len(s.households[householdID]))
	for _, item := range s.households[householdID] {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// Update applies a field patch under the optimistic-concurrency precondition.
// A stale token is rejected outright with ErrConflict (never merged) and the
// current item state is returned with the error; version is not bumped. A
// token that was never produced by the codec fails with etag.ErrMalformedToken.
func (s *ItemStore) Update(householdID, itemID, presentedToken string, patch models.ItemPatch) (*UpdateResult, error) {
	if _, err := etag.Decode(presentedToken); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if patch.Name != nil && *patch.Name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if patch.Location != nil && !models.ValidLocation(*patch.Location) {
		return nil, fmt.Errorf("%w: unknown location %q", ErrValidation, *patch.Location)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.lookup(householdID, itemID)
	if err != nil {
		return nil, err
	}
	if !etag.Matches(presentedToken, item.Version) {
		current := *item
		return &UpdateResult{Item: current}, ErrConflict
	}

	changes := applyPatch(item, patch)
	item.Version++
	item.UpdatedAt = time.Now().UTC()

	copied := *item
	return &UpdateResult{Item: copied, Changes: changes}, nil
}

// Consume decrements quantity without a version precondition: concurrent
// partial consumption is an expected pattern, so races resolve by plain
// arithmetic instead of conflicts. Reaching exactly zero deletes the item.
func (s *ItemStore) Consume(householdID, itemID string, quantity float64) (*QuantityChange, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.lookup(householdID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity > item.Quantity {
		return nil, ErrInsufficientQuantity
	}

	item.Quantity -= quantity
	item.Version++
	item.UpdatedAt = time.Now().UTC()

	change := &QuantityChange{Item: *item, Taken: quantity}
	if item.Quantity == 0 {
		delete(s.households[householdID], itemID)
		change.Deleted = true
	}
	return change, nil
}

// Waste has the same semantics as Consume; the distinction (reason, audit
// trail) lives in the coordinator, which records the waste before publishing.
func (s *ItemStore) Waste(householdID, itemID string, quantity float64) (*QuantityChange, error) {
	return s.Consume(householdID, itemID, quantity)
}

// Delete removes the item unconditionally. Deletion is intentionally
// non-conflictable: last delete wins, a second delete gets ErrNotFound.
func (s *ItemStore) Delete(householdID, itemID string) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.lookup(householdID, itemID)
	if err != nil {
		return nil, err
	}
	delete(s.households[householdID], itemID)

	copied := *item
	return &copied, nil
}

// lookup must be called with the lock held
func (s *ItemStore) lookup(householdID, itemID string) (*models.InventoryItem, error) {
	item, ok := s.households[householdID][itemID]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

// applyPatch writes the set fields onto the item and returns the applied
// changes keyed by JSON field name
func applyPatch(item *models.InventoryItem, patch models.ItemPatch) map[string]interface{} {
	changes := make(map[string]interface{})
	if patch.Name != nil {
		item.Name = *patch.Name
		changes["name"] = *patch.Name
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
		changes["quantity"] = *patch.Quantity
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
		changes["unit"] = *patch.Unit
	}
	if patch.Location != nil {
		item.Location = *patch.Location
		changes["location"] = *patch.Location
	}
	if patch.Category != nil {
		item.Category = *patch.Category
		changes["category"] = *patch.Category
	}
	if patch.ExpirationDate != nil {
		item.ExpirationDate = patch.ExpirationDate
		changes["expirationDate"] = patch.ExpirationDate
	}
	if patch.BestBeforeDate != nil {
		item.BestBeforeDate = patch.BestBeforeDate
		changes["bestBeforeDate"] = patch.BestBeforeDate
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
		changes["notes"] = *patch.Notes
	}
	return changes
}
