package logging

import (
	"maps"
	"sync"
)

// Standard key prefix for all agentcore metric keys.
// Use your own prefix (e.g., "myapp:") for custom metrics to avoid collisions.
const KeyPrefix = "agentcore:"

// Execution tracking keys.
const (
	KeyExecutions         = "agentcore:executions"
	KeyExecutionsByStatus = "agentcore:executions:" // + run status
)

// Step tracking keys.
const (
	KeySteps              = "agentcore:steps"
	KeyStepsFor           = "agentcore:steps:" // + step name
	KeyStepFailures       = "agentcore:step_failures"
	KeyStepFailuresByKind = "agentcore:step_failures:" // + error kind
	KeyStepDurationMillis = "agentcore:step_duration_ms"
)

// Checkpoint and interrupt tracking keys.
const (
	KeyCheckpoints = "agentcore:checkpoints"
	KeyInterrupts  = "agentcore:interrupts"
)

// Gauge keys.
const (
	// KeyConsecutiveFailures is reset by every successful step.
	KeyConsecutiveFailures = "agentcore:consecutive_failures"
)

// Metrics holds counters and gauges collected by the logging hook.
//
// Counters only go up. Gauges can go up and down.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// IncrCounter increments a counter by delta, creating it if needed.
// Panics if delta is negative.
func (m *Metrics) IncrCounter(key string, delta int64) {
	if delta < 0 {
		panic("logging: IncrCounter called with negative delta")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += delta
}

// GetCounter returns the counter value, or 0 if unset.
func (m *Metrics) GetCounter(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[key]
}

// IncrGauge adds delta (which may be negative) to a gauge.
func (m *Metrics) IncrGauge(key string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] += delta
}

// SetGauge sets a gauge to value.
func (m *Metrics) SetGauge(key string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] = value
}

// ResetGauge sets a gauge back to zero.
func (m *Metrics) ResetGauge(key string) {
	m.SetGauge(key, 0)
}

// GetGauge returns the gauge value, or 0 if unset.
func (m *Metrics) GetGauge(key string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[key]
}

// Counters returns a snapshot of every counter.
func (m *Metrics) Counters() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.counters)
}

// Gauges returns a snapshot of every gauge.
func (m *Metrics) Gauges() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.gauges)
}
