package memory

import (
	"sync"
	"time"

	"sms-transactions/pkg/metrics"
)

// MemoryCollector implements MetricsCollector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	// Store operations keyed by operation, then outcome
	storeOps  map[string]map[string]int64
	storeSize int

	// HTTP requests keyed by "METHOD route", then status
	requests     map[string]map[int]int64
	authFailures map[string]int64

	loads         int64
	failedLoads   int64
	loadedRecords int

	bloomRejections map[string]int64

	circuitStates  map[string]metrics.CircuitState
	circuitOpens   map[string]int64
	queueDepth     int
	droppedEvents  int64
	publishedOK    int64
	publishFailed  int64
	storeLatencies []time.Duration
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.reset()
	return mc
}

func (mc *MemoryCollector) reset() {
	mc.storeOps = make(map[string]map[string]int64)
	mc.storeSize = 0
	mc.requests = make(map[string]map[int]int64)
	mc.authFailures = make(map[string]int64)
	mc.loads, mc.failedLoads, mc.loadedRecords = 0, 0, 0
	mc.bloomRejections = make(map[string]int64)
	mc.circuitStates = make(map[string]metrics.CircuitState)
	mc.circuitOpens = make(map[string]int64)
	mc.queueDepth = 0
	mc.droppedEvents = 0
	mc.publishedOK, mc.publishFailed = 0, 0
	mc.storeLatencies = nil
}

// RecordStoreOperation records a store operation.
func (mc *MemoryCollector) RecordStoreOperation(op string, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.storeOps[op] == nil {
		mc.storeOps[op] = make(map[string]int64)
	}
	mc.storeOps[op][outcome]++
	mc.storeLatencies = append(mc.storeLatencies, duration)
}

// RecordStoreSize records the number of live transactions.
func (mc *MemoryCollector) RecordStoreSize(size int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.storeSize = size
}

// RecordRequest records a completed HTTP request.
func (mc *MemoryCollector) RecordRequest(method, route string, status int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := method + " " + route
	if mc.requests[key] == nil {
		mc.requests[key] = make(map[int]int64)
	}
	mc.requests[key][status]++
}

// RecordAuthFailure records a rejected credential.
func (mc *MemoryCollector) RecordAuthFailure(reason string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.authFailures[reason]++
}

// RecordLoad records a document load.
func (mc *MemoryCollector) RecordLoad(records int, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.loads++
	if !success {
		mc.failedLoads++
	}
	mc.loadedRecords = records
}

// RecordBloomRejection records a lookup rejected by the bloom filter.
func (mc *MemoryCollector) RecordBloomRejection(op string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.bloomRejections[op]++
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(name string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	oldState := mc.circuitStates[name]
	mc.circuitStates[name] = state

	// Count transitions to open
	if oldState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		mc.circuitOpens[name]++
	}
}

// RecordQueueDepth records the current change event queue depth.
func (mc *MemoryCollector) RecordQueueDepth(depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.queueDepth = depth
}

// RecordEventDropped records a dropped change event.
func (mc *MemoryCollector) RecordEventDropped() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.droppedEvents++
}

// RecordEventPublish records a change event publish attempt.
func (mc *MemoryCollector) RecordEventPublish(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if success {
		mc.publishedOK++
	} else {
		mc.publishFailed++
	}
}

// Snapshot is a copy of the collected metrics.
type Snapshot struct {
	StoreOps        map[string]map[string]int64
	StoreSize       int
	Requests        map[string]map[int]int64
	AuthFailures    map[string]int64
	Loads           int64
	FailedLoads     int64
	LoadedRecords   int
	BloomRejections map[string]int64
	CircuitStates   map[string]metrics.CircuitState
	CircuitOpens    map[string]int64
	QueueDepth      int
	DroppedEvents   int64
	PublishedOK     int64
	PublishFailed   int64
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		StoreOps:        make(map[string]map[string]int64, len(mc.storeOps)),
		StoreSize:       mc.storeSize,
		Requests:        make(map[string]map[int]int64, len(mc.requests)),
		AuthFailures:    copyMap(mc.authFailures),
		Loads:           mc.loads,
		FailedLoads:     mc.failedLoads,
		LoadedRecords:   mc.loadedRecords,
		BloomRejections: copyMap(mc.bloomRejections),
		CircuitStates:   copyMap(mc.circuitStates),
		CircuitOpens:    copyMap(mc.circuitOpens),
		QueueDepth:      mc.queueDepth,
		DroppedEvents:   mc.droppedEvents,
		PublishedOK:     mc.publishedOK,
		PublishFailed:   mc.publishFailed,
	}

	for op, outcomes := range mc.storeOps {
		snapshot.StoreOps[op] = copyMap(outcomes)
	}
	for key, statuses := range mc.requests {
		snapshot.Requests[key] = copyMap(statuses)
	}

	return snapshot
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.reset()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ metrics.MetricsCollector = (*MemoryCollector)(nil)
