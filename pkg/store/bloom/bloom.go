package bloom

import (
	"fmt"
	"strconv"
	"sync"

	"sms-transactions/pkg/metrics"
	"sms-transactions/pkg/store"
	"sms-transactions/pkg/transaction"

	"github.com/bits-and-blooms/bloom/v3"
)

// Store answers lookups for ids that were never assigned without consulting
// the wrapped store. Ids are only ever added to the filter, so deleted ids
// still reach the wrapped store, which reports them as not found.
type Store struct {
	inner   store.Store
	filter  *bloom.BloomFilter
	metrics metrics.MetricsCollector
	mu      sync.RWMutex

	totalQueries   uint64
	bloomRejected  uint64
	falsePositives uint64
}

// Config configures the bloom filter.
type Config struct {
	// ExpectedItems sizes the filter (default: 10000)
	ExpectedItems uint

	// FalsePositiveRate is the target false positive rate (default: 0.01)
	FalsePositiveRate float64

	Metrics metrics.MetricsCollector
}

// NewStore wraps inner, seeding the filter with the ids it already holds.
func NewStore(inner store.Store, seed []int, config Config) *Store {
	if config.ExpectedItems == 0 {
		config.ExpectedItems = 10000
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = 0.01
	}
	if n := uint(len(seed)) * 2; n > config.ExpectedItems {
		config.ExpectedItems = n
	}

	s := &Store{
		inner:   inner,
		filter:  bloom.NewWithEstimates(config.ExpectedItems, config.FalsePositiveRate),
		metrics: metrics.OrNoOp(config.Metrics),
	}
	for _, id := range seed {
		s.filter.Add(key(id))
	}

	return s
}

func key(id int) []byte {
	return []byte(strconv.Itoa(id))
}

// mayExist tests the filter and records the outcome for op.
func (s *Store) mayExist(op string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries++
	if s.filter.Test(key(id)) {
		return true
	}
	s.bloomRejected++
	s.metrics.RecordBloomRejection(op)
	return false
}

func (s *Store) observe(err error) {
	if transaction.IsNotFound(err) {
		s.mu.Lock()
		s.falsePositives++
		s.mu.Unlock()
	}
}

func rejected(id int) error {
	return fmt.Errorf("%w: id %d", transaction.ErrNotFound, id)
}

// List delegates to the wrapped store.
func (s *Store) List(filter transaction.Filter) []transaction.Transaction {
	return s.inner.List(filter)
}

// Get returns the transaction with the given id.
func (s *Store) Get(id int) (transaction.Transaction, error) {
	if !s.mayExist("get", id) {
		return transaction.Transaction{}, rejected(id)
	}
	t, err := s.inner.Get(id)
	s.observe(err)
	return t, err
}

// Create stores a new transaction and records its id in the filter.
func (s *Store) Create(req transaction.CreateRequest) (transaction.Transaction, error) {
	// The filter lock spans the inner create so a lookup never sees a stored
	// id that is not yet in the filter.
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.inner.Create(req)
	if err != nil {
		return t, err
	}
	s.filter.Add(key(t.ID))

	return t, nil
}

// Update applies req to the transaction with the given id.
func (s *Store) Update(id int, req transaction.UpdateRequest) (transaction.Transaction, error) {
	if !s.mayExist("update", id) {
		return transaction.Transaction{}, rejected(id)
	}
	t, err := s.inner.Update(id, req)
	s.observe(err)
	return t, err
}

// Delete removes the transaction with the given id.
func (s *Store) Delete(id int) (transaction.Transaction, error) {
	if !s.mayExist("delete", id) {
		return transaction.Transaction{}, rejected(id)
	}
	t, err := s.inner.Delete(id)
	s.observe(err)
	return t, err
}

// Len delegates to the wrapped store.
func (s *Store) Len() int {
	return s.inner.Len()
}

// Stats returns statistics about bloom filter performance.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rejectionRate := 0.0
	falsePositiveRate := 0.0

	if s.totalQueries > 0 {
		rejectionRate = float64(s.bloomRejected) / float64(s.totalQueries)
		queried := s.totalQueries - s.bloomRejected
		if queried > 0 {
			falsePositiveRate = float64(s.falsePositives) / float64(queried)
		}
	}

	return Stats{
		TotalQueries:      s.totalQueries,
		BloomRejected:     s.bloomRejected,
		FalsePositives:    s.falsePositives,
		RejectionRate:     rejectionRate,
		FalsePositiveRate: falsePositiveRate,
		FilterCapacity:    s.filter.Cap(),
	}
}

// Stats holds statistics about bloom filter performance. FalsePositives
// includes lookups of deleted ids, which the filter cannot forget.
type Stats struct {
	TotalQueries      uint64
	BloomRejected     uint64
	FalsePositives    uint64
	RejectionRate     float64
	FalsePositiveRate float64
	FilterCapacity    uint
}

var _ store.Store = (*Store)(nil)
