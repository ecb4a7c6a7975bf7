// Package hub is the pub/sub fan-out keyed by household. It knows nothing
// about transports: sessions register a Sink and the hub pushes every
// published event to the sinks subscribed to the affected household.
package hub

import (
	"sync"

	"larder/internal/models"
)

// Sink receives events for one session. Deliver must never block; a slow
// or dead session is the sink's problem, not the publisher's.
type Sink interface {
	Deliver(event models.ChangeEvent)
}

// Hub maps live sessions to the households they listen to
type Hub struct {
	mu          sync.RWMutex
	sinks       map[string]Sink
	byHousehold map[string]map[string]struct{}
	bySession   map[string]map[string]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		sinks:       make(map[string]Sink),
		byHousehold: make(map[string]map[string]struct{}),
		bySession:   make(map[string]map[string]struct{}),
	}
}

// Register attaches a session's sink. A session receives no events until
// it subscribes to at least one household.
func (h *Hub) Register(sessionID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[sessionID] = sink
}

// Subscribe adds the session to a household's audience. Idempotent:
// subscribing twice has no additional effect. Unknown sessions are ignored.
func (h *Hub) Subscribe(sessionID, householdID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sinks[sessionID]; !ok {
		return
	}
	if h.byHousehold[householdID] == nil {
		h.byHousehold[householdID] = make(map[string]struct{})
	}
	h.byHousehold[householdID][sessionID] = struct{}{}

	if h.bySession[sessionID] == nil {
		h.bySession[sessionID] = make(map[string]struct{})
	}
	h.bySession[sessionID][householdID] = struct{}{}
}

// Unsubscribe removes one household subscription. Safe to call even if the
// session was never subscribed.
func (h *Hub) Unsubscribe(sessionID, householdID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropSubscription(sessionID, householdID)
}

// UnsubscribeAll removes every subscription of the session and detaches its
// sink. Called synchronously on disconnect so no further publish reaches a
// dead session.
func (h *Hub) UnsubscribeAll(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for householdID := range h.bySession[sessionID] {
		h.dropSubscription(sessionID, householdID)
	}
	delete(h.bySession, sessionID)
	delete(h.sinks, sessionID)
}

// Publish delivers the event to every session subscribed to the household.
// Fire-and-forget: delivery never fails or blocks the caller.
func (h *Hub) Publish(householdID string, event models.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sessionID := range h.byHousehold[householdID] {
		if sink, ok := h.sinks[sessionID]; ok {
			sink.Deliver(event)
		}
	}
}

// SessionCount returns the number of registered sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// dropSubscription must be called with the lock held
func (h *Hub) dropSubscription(sessionID, householdID string) {
	if audience, ok := h.byHousehold[householdID]; ok {
		delete(audience, sessionID)
		if len(audience) == 0 {
			delete(h.byHousehold, householdID)
		}
	}
	if subs, ok := h.bySession[sessionID]; ok {
		delete(subs, householdID)
	}
}
