package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps lightweight operational counters for the stats endpoint
type Monitor struct {
	counters      map[string]int64
	countersMutex sync.RWMutex
	startTime     time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		counters:  make(map[string]int64),
		startTime: time.Now(),
	}
}

// RecordMutation counts one mutation attempt by operation and outcome,
// e.g. ("update", "conflict")
func (m *Monitor) RecordMutation(operation, outcome string) {
	m.countersMutex.Lock()
	defer m.countersMutex.Unlock()
	m.counters[operation+"_"+outcome]++
}

// RecordEvent counts one published fan-out event by type
func (m *Monitor) RecordEvent(eventType string) {
	m.countersMutex.Lock()
	defer m.countersMutex.Unlock()
	m.counters["events_"+eventType]++
}

// Snapshot returns all current counters plus system stats
func (m *Monitor) Snapshot() map[string]interface{} {
	m.countersMutex.RLock()
	defer m.countersMutex.RUnlock()

	// Create a copy to avoid concurrent map access
	stats := make(map[string]interface{}, len(m.counters)+1)
	for k, v := range m.counters {
		stats[k] = v
	}
	stats["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return stats
}

// Reset clears all counters
func (m *Monitor) Reset() {
	m.countersMutex.Lock()
	defer m.countersMutex.Unlock()
	m.counters = make(map[string]int64)
}
