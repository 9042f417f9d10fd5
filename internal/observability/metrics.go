package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for triage outcomes and HTTP
// errors.
type Metrics struct {
	mu             sync.Mutex
	triageOutcomes map[string]int64
	errorCount     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		triageOutcomes: make(map[string]int64),
		errorCount:     make(map[string]int64),
	}
}

// RecordTriageOutcome increments the counter for a worker outcome
// (info, failed, invalid_response, not_found, stale).
func (m *Metrics) RecordTriageOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triageOutcomes[outcome]++
}

// TriageOutcome returns the current count for an outcome.
func (m *Metrics) TriageOutcome(outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triageOutcomes[outcome]
}

// RecordError increments error counters for HTTP failures.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}
