package memory

import (
	"fmt"
	"sync"
	"time"

	"sms-transactions/pkg/loader"
	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"
	"sms-transactions/pkg/store"
	"sms-transactions/pkg/transaction"

	"go.uber.org/zap"
)

// Store is an in-memory transaction store holding two views over the same
// records: an insertion-ordered slice and an index keyed by id.
// Both views are guarded by a single lock so neither is observed stale.
type Store struct {
	// mu protects ordered, byID and nextID
	mu sync.RWMutex

	ordered []*transaction.Transaction
	byID    map[int]*transaction.Transaction

	// nextID is always greater than every id ever held
	nextID int

	config StoreConfig
}

// StoreConfig holds configuration for the memory store
type StoreConfig struct {
	// Now supplies the default timestamp for new records (default: time.Now)
	Now func() time.Time

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// NewStore creates a store seeded with ds. The store takes ownership of the
// dataset's records; ds may be nil for an empty store.
func NewStore(config StoreConfig, ds *loader.Dataset) *Store {
	if config.Now == nil {
		config.Now = time.Now
	}
	config.Metrics = metrics.OrNoOp(config.Metrics)
	config.Logger = logging.OrNop(config.Logger).Named("store")

	if ds == nil {
		ds = loader.Empty()
	} else if ds.ByID == nil {
		ds = loader.NewDataset(ds.Ordered)
	}

	s := &Store{
		ordered: ds.Ordered,
		byID:    ds.ByID,
		nextID:  ds.MaxID() + 1,
		config:  config,
	}
	s.config.Metrics.RecordStoreSize(len(s.ordered))

	return s
}

// List returns the transactions matching filter in insertion order.
func (s *Store) List(filter transaction.Filter) []transaction.Transaction {
	start := time.Now()

	s.mu.RLock()
	result := make([]transaction.Transaction, 0, len(s.ordered))
	for _, t := range s.ordered {
		if filter.Match(t) {
			result = append(result, *t)
		}
	}
	s.mu.RUnlock()

	s.record("list", nil, start)
	return result
}

// Get returns the transaction with the given id.
func (s *Store) Get(id int) (transaction.Transaction, error) {
	start := time.Now()

	s.mu.RLock()
	t, ok := s.byID[id]
	var out transaction.Transaction
	if ok {
		out = *t
	}
	s.mu.RUnlock()

	if !ok {
		err := notFound(id)
		s.record("get", err, start)
		return transaction.Transaction{}, err
	}

	s.record("get", nil, start)
	return out, nil
}

// Create validates req and appends a new transaction with the next id.
func (s *Store) Create(req transaction.CreateRequest) (transaction.Transaction, error) {
	start := time.Now()

	s.mu.Lock()
	t, err := req.Build(s.nextID, s.config.Now())
	if err != nil {
		s.mu.Unlock()
		s.record("create", err, start)
		return transaction.Transaction{}, err
	}

	rec := &t
	s.ordered = append(s.ordered, rec)
	s.byID[rec.ID] = rec
	s.nextID++
	size := len(s.ordered)
	s.mu.Unlock()

	s.config.Metrics.RecordStoreSize(size)
	s.record("create", nil, start)
	s.config.Logger.Debug("transaction created", logging.TransactionID(t.ID))
	return t, nil
}

// Update applies req to the stored transaction. The record is shared by both
// views, so a single write updates the ordered sequence and the index.
func (s *Store) Update(id int, req transaction.UpdateRequest) (transaction.Transaction, error) {
	start := time.Now()

	s.mu.Lock()
	rec, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		err := notFound(id)
		s.record("update", err, start)
		return transaction.Transaction{}, err
	}
	req.Apply(rec)
	out := *rec
	s.mu.Unlock()

	s.record("update", nil, start)
	s.config.Logger.Debug("transaction updated", logging.TransactionID(id))
	return out, nil
}

// Delete removes the transaction from both views.
func (s *Store) Delete(id int) (transaction.Transaction, error) {
	start := time.Now()

	s.mu.Lock()
	rec, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		err := notFound(id)
		s.record("delete", err, start)
		return transaction.Transaction{}, err
	}

	delete(s.byID, id)
	for i, t := range s.ordered {
		if t == rec {
			copy(s.ordered[i:], s.ordered[i+1:])
			s.ordered[len(s.ordered)-1] = nil
			s.ordered = s.ordered[:len(s.ordered)-1]
			break
		}
	}
	out := *rec
	size := len(s.ordered)
	s.mu.Unlock()

	s.config.Metrics.RecordStoreSize(size)
	s.record("delete", nil, start)
	s.config.Logger.Debug("transaction deleted", logging.TransactionID(id))
	return out, nil
}

// Len returns the number of live transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ordered)
}

// NextID returns the id the next created transaction will receive.
func (s *Store) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextID
}

// IDs returns the ids of every live transaction in insertion order.
func (s *Store) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, len(s.ordered))
	for i, t := range s.ordered {
		ids[i] = t.ID
	}
	return ids
}

// CheckConsistency verifies that the ordered sequence and the index hold
// exactly the same records. It is meant for tests and diagnostics.
func (s *Store) CheckConsistency() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ordered) != len(s.byID) {
		return fmt.Errorf("ordered has %d records, index has %d", len(s.ordered), len(s.byID))
	}
	for i, t := range s.ordered {
		indexed, ok := s.byID[t.ID]
		if !ok {
			return fmt.Errorf("id %d at position %d missing from index", t.ID, i)
		}
		if indexed != t {
			return fmt.Errorf("id %d at position %d is a different record in the index", t.ID, i)
		}
		if t.ID >= s.nextID {
			return fmt.Errorf("id %d is not below next id %d", t.ID, s.nextID)
		}
	}
	return nil
}

func (s *Store) record(op string, err error, start time.Time) {
	s.config.Metrics.RecordStoreOperation(op, outcome(err), time.Since(start))
	if err != nil && !transaction.IsNotFound(err) {
		s.config.Logger.Debug("store operation rejected",
			logging.Operation(op),
			zap.Error(err),
		)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return transaction.ClassifyError(err)
}

func notFound(id int) error {
	return fmt.Errorf("%w: id %d", transaction.ErrNotFound, id)
}

// Compile-time check: ensure Store implements store.Store
var _ store.Store = (*Store)(nil)
