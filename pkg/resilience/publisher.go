package resilience

import (
	"context"
	"errors"
	"time"

	"sms-transactions/pkg/events"
	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a publish
	ErrCircuitOpen = errors.New("resilience: circuit breaker open")

	// ErrTimeout is returned when a publish exceeds the configured timeout
	ErrTimeout = errors.New("resilience: publish timeout")
)

// Publisher wraps an events.Publisher with circuit breaker and timeout protection.
type Publisher struct {
	publisher events.Publisher
	cb        *gobreaker.CircuitBreaker
	name      string
	timeout   time.Duration
	metrics   metrics.MetricsCollector
	logger    *logging.Logger
}

// NewPublisher creates a resilient wrapper around publisher.
func NewPublisher(publisher events.Publisher, config PublisherConfig) *Publisher {
	return NewPublisherWithMetrics(publisher, config, metrics.NoOpCollector{}, nil)
}

// NewPublisherWithMetrics creates a resilient wrapper with custom metrics and logger.
func NewPublisherWithMetrics(publisher events.Publisher, config PublisherConfig, metricsCollector metrics.MetricsCollector, logger *logging.Logger) *Publisher {
	if config.Name == "" {
		config.Name = "publisher"
	}
	logger = logging.OrNop(logger).Named("resilience").Named(config.Name)

	rp := &Publisher{
		publisher: publisher,
		name:      config.Name,
		timeout:   config.Timeout,
		metrics:   metrics.OrNoOp(metricsCollector),
		logger:    logger,
	}

	logger.Info("resilient publisher initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.CircuitBreakerConfig.ReadyToTrip != nil {
				return config.CircuitBreakerConfig.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rp.metrics.RecordCircuitState(name, circuitState(to))
		},
	}

	rp.cb = gobreaker.NewCircuitBreaker(settings)

	return rp
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the breaker name.
func (rp *Publisher) Name() string {
	return rp.name
}

// State returns the current circuit state.
func (rp *Publisher) State() metrics.CircuitState {
	return circuitState(rp.cb.State())
}

// Publish delivers event through the circuit breaker with timeout enforcement.
func (rp *Publisher) Publish(ctx context.Context, event events.Event) error {
	start := time.Now()

	if rp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rp.timeout)
		defer cancel()
	}

	_, err := rp.cb.Execute(func() (interface{}, error) {
		return nil, rp.publisher.Publish(ctx, event)
	})
	if err == nil {
		return nil
	}

	duration := time.Since(start)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		rp.logger.Warn("circuit breaker open - publish rejected",
			zap.String("kind", string(event.Kind)),
			logging.TransactionID(event.Transaction.ID),
		)
		return ErrCircuitOpen
	}
	if ctx.Err() == context.DeadlineExceeded {
		rp.logger.Warn("publish timeout",
			zap.String("kind", string(event.Kind)),
			zap.Duration("timeout", rp.timeout),
			zap.Duration("elapsed", duration),
		)
		return ErrTimeout
	}
	return err
}

// Close closes the underlying publisher.
func (rp *Publisher) Close() error {
	return rp.publisher.Close()
}

var _ events.Publisher = (*Publisher)(nil)
