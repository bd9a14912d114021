package events

import "errors"

// DispatcherStats provides statistics about dispatcher operations.
type DispatcherStats struct {
	// QueueDepth is the current number of pending events in the queue
	QueueDepth int

	// Pending is the number of accepted events not yet published
	Pending int64

	// Dropped is the total number of events dropped due to backpressure
	Dropped int64

	// Enqueued is the total number of events accepted
	Enqueued int64

	// Published is the total number of events delivered successfully
	Published int64

	// Failed is the total number of events the publisher rejected
	Failed int64
}

// Errors returned by dispatcher operations.
var (
	// ErrQueueFull is returned when the queue is full and MaxWaitTime exceeded
	ErrQueueFull = errors.New("events: queue full, event dropped")

	// ErrDispatcherClosed is returned when enqueueing on a closed dispatcher
	ErrDispatcherClosed = errors.New("events: dispatcher is closed")

	// ErrFlushTimeout is returned when Flush() times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("events: flush timeout exceeded")
)
