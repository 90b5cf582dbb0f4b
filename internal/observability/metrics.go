package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sweeps       SweepCounters
}

// SweepCounters accumulates auto-close sweep outcomes.
type SweepCounters struct {
	Runs    int64
	Closed  int64
	Skipped int64
	Failed  int64
	LastRun time.Time
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep adds one sweep outcome.
func (m *Metrics) RecordSweep(at time.Time, closed, skipped, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps.Runs++
	m.sweeps.Closed += int64(closed)
	m.sweeps.Skipped += int64(skipped)
	m.sweeps.Failed += int64(failed)
	m.sweeps.LastRun = at
}

// RequestCount returns the number of requests recorded for path, method and status.
func (m *Metrics) RequestCount(path, method string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[pathKey(path, method, status)]
}

// ErrorCount returns the number of errors recorded for path, method and code.
func (m *Metrics) ErrorCount(path, method, code string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount[path+"|"+method+"|"+code]
}

// Sweeps returns a copy of the sweep counters.
func (m *Metrics) Sweeps() SweepCounters {
	if m == nil {
		return SweepCounters{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
