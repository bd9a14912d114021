package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting service metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory for tests).
type MetricsCollector interface {
	// Store operations; outcome is "ok" or an error class such as "not_found"
	RecordStoreOperation(op string, outcome string, duration time.Duration)
	RecordStoreSize(size int)

	// HTTP layer
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordAuthFailure(reason string)

	// Document loader
	RecordLoad(records int, success bool, duration time.Duration)

	// Bloom filter short-circuits
	RecordBloomRejection(op string)

	// Change feed
	RecordCircuitState(name string, state CircuitState)
	RecordQueueDepth(depth int)
	RecordEventDropped()
	RecordEventPublish(success bool, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the service has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordStoreOperation does nothing.
func (NoOpCollector) RecordStoreOperation(op string, outcome string, duration time.Duration) {}

// RecordStoreSize does nothing.
func (NoOpCollector) RecordStoreSize(size int) {}

// RecordRequest does nothing.
func (NoOpCollector) RecordRequest(method, route string, status int, duration time.Duration) {}

// RecordAuthFailure does nothing.
func (NoOpCollector) RecordAuthFailure(reason string) {}

// RecordLoad does nothing.
func (NoOpCollector) RecordLoad(records int, success bool, duration time.Duration) {}

// RecordBloomRejection does nothing.
func (NoOpCollector) RecordBloomRejection(op string) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}

// RecordQueueDepth does nothing.
func (NoOpCollector) RecordQueueDepth(depth int) {}

// RecordEventDropped does nothing.
func (NoOpCollector) RecordEventDropped() {}

// RecordEventPublish does nothing.
func (NoOpCollector) RecordEventPublish(success bool, duration time.Duration) {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
