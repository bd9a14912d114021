package resilience

import (
	"time"
)

// PublisherConfig configures resilience features for an event publisher.
type PublisherConfig struct {
	// Name identifies the breaker in logs and metrics (default: "publisher")
	Name string

	// Timeout bounds each publish attempt. Zero disables it.
	Timeout time.Duration

	// CircuitBreakerConfig configures the circuit breaker behavior
	CircuitBreakerConfig CircuitBreakerConfig
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open. Default: 1
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for the CircuitBreaker
	// to clear the internal counts. If Interval is 0, it never clears. Default: 0
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	// Default: 60s
	Timeout time.Duration

	// ReadyToTrip is called with a copy of Counts whenever a request fails.
	// If ReadyToTrip returns true, the CircuitBreaker will be placed into the open state.
	// If nil, default threshold is used (5 consecutive failures).
	ReadyToTrip func(counts Counts) bool
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// ConsecutiveFailures returns a ReadyToTrip function that trips after n consecutive failures.
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// DefaultPublisherConfig returns defaults for publishing to a message broker.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Name:    "publisher",
		Timeout: 5 * time.Second,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: ConsecutiveFailures(5),
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c PublisherConfig) WithTimeout(timeout time.Duration) PublisherConfig {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout returns a copy of the config with the specified circuit breaker timeout.
func (c PublisherConfig) WithCircuitBreakerTimeout(timeout time.Duration) PublisherConfig {
	c.CircuitBreakerConfig.Timeout = timeout
	return c
}
