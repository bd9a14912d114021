package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"

	"go.uber.org/zap"
)

// Dispatcher publishes events in the background using a worker pool. Each
// worker owns a bounded queue and events are routed by transaction id, so
// events for one transaction are published in the order they were enqueued.
// Enqueue never blocks longer than MaxWaitTime.
type Dispatcher struct {
	publisher  Publisher
	queues     []chan Event
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     DispatcherConfig
	metrics    metrics.MetricsCollector
	logger     *logging.Logger
	closeOnce  sync.Once

	// mu guards closed; senders hold the read lock for the whole send.
	mu     sync.RWMutex
	closed bool

	// Statistics (accessed atomically)
	pending   int64
	dropped   int64
	enqueued  int64
	published int64
	failed    int64

	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

// DispatcherConfig configures the dispatcher behavior.
type DispatcherConfig struct {
	// QueueSize is the bounded queue size of each worker (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if the queue is full.
	// Negative means drop immediately (default: 10ms)
	MaxWaitTime time.Duration

	// ReportInterval is how often queue depth is reported (default: 5s)
	ReportInterval time.Duration

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// NewDispatcher creates a dispatcher that starts processing immediately and
// must be closed with Close().
func NewDispatcher(publisher Publisher, config DispatcherConfig) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		publisher:     publisher,
		queues:        make([]chan Event, config.Workers),
		workers:       config.Workers,
		ctx:           ctx,
		cancelFunc:    cancel,
		config:        config,
		metrics:       metrics.OrNoOp(config.Metrics),
		logger:        logging.OrNop(config.Logger).Named("events"),
		metricsTicker: time.NewTicker(config.ReportInterval),
		metricsStop:   make(chan struct{}),
	}

	for i := range d.queues {
		d.queues[i] = make(chan Event, config.QueueSize)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}

	go d.reportMetrics()

	return d
}

// Enqueue schedules event for publishing.
// If the queue is full, it waits up to MaxWaitTime before dropping the event.
func (d *Dispatcher) Enqueue(ctx context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	atomic.AddInt64(&d.pending, 1)
	if err := d.enqueue(ctx, event); err != nil {
		atomic.AddInt64(&d.pending, -1)
		return err
	}
	atomic.AddInt64(&d.enqueued, 1)
	return nil
}

// shard picks the worker queue for the event's transaction.
func (d *Dispatcher) shard(event Event) chan Event {
	i := event.Transaction.ID % len(d.queues)
	if i < 0 {
		i = -i
	}
	return d.queues[i]
}

func (d *Dispatcher) enqueue(ctx context.Context, event Event) error {
	queue := d.shard(event)

	if d.config.MaxWaitTime < 0 {
		select {
		case queue <- event:
			return nil
		default:
			return d.drop(event)
		}
	}

	timer := time.NewTimer(d.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case queue <- event:
		return nil
	case <-timer.C:
		return d.drop(event)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drop(event Event) error {
	atomic.AddInt64(&d.dropped, 1)
	d.metrics.RecordEventDropped()
	d.logger.Warn("event dropped",
		zap.String("kind", string(event.Kind)),
		logging.TransactionID(event.Transaction.ID),
	)
	return ErrQueueFull
}

func (d *Dispatcher) worker(queue <-chan Event) {
	defer d.wg.Done()

	for {
		select {
		case event := <-queue:
			d.publish(event)
		case <-d.ctx.Done():
			for {
				select {
				case event := <-queue:
					d.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(event Event) {
	defer atomic.AddInt64(&d.pending, -1)

	start := time.Now()
	err := d.publisher.Publish(context.Background(), event)
	d.metrics.RecordEventPublish(err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&d.failed, 1)
		d.logger.Error("event publish failed",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(event.Kind)),
			logging.TransactionID(event.Transaction.ID),
			zap.Error(err),
		)
		return
	}
	atomic.AddInt64(&d.published, 1)
}

// Flush waits until every accepted event has been published, or until timeout.
func (d *Dispatcher) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&d.pending) == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting new events, publishes what is queued and closes the publisher.
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.metricsStop)
		d.metricsTicker.Stop()

		d.cancelFunc()
		d.wg.Wait()

		err = d.publisher.Close()
	})
	return err
}

func (d *Dispatcher) reportMetrics() {
	for {
		select {
		case <-d.metricsTicker.C:
			d.metrics.RecordQueueDepth(d.queueDepth())
		case <-d.metricsStop:
			return
		}
	}
}

func (d *Dispatcher) queueDepth() int {
	depth := 0
	for _, q := range d.queues {
		depth += len(q)
	}
	return depth
}

// Stats returns current statistics about the dispatcher.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		QueueDepth: d.queueDepth(),
		Pending:    atomic.LoadInt64(&d.pending),
		Dropped:    atomic.LoadInt64(&d.dropped),
		Enqueued:   atomic.LoadInt64(&d.enqueued),
		Published:  atomic.LoadInt64(&d.published),
		Failed:     atomic.LoadInt64(&d.failed),
	}
}
