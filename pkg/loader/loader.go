// Package loader reads the XML transaction document into the in-memory model.
package loader

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"
	"sms-transactions/pkg/transaction"

	"go.uber.org/zap"
)

var (
	// ErrMalformedDocument is returned when the document is not well-formed XML
	ErrMalformedDocument = errors.New("loader: malformed document")

	// ErrMalformedRecord is returned when a transaction element is incomplete or invalid
	ErrMalformedRecord = errors.New("loader: malformed record")
)

// Dataset is a parsed document: records in document order and an index over
// the same records keyed by id.
type Dataset struct {
	Ordered []*transaction.Transaction
	ByID    map[int]*transaction.Transaction
}

// Empty returns a dataset with no records.
func Empty() *Dataset {
	return NewDataset(nil)
}

// NewDataset builds a dataset over ordered, deriving the index from it.
func NewDataset(ordered []*transaction.Transaction) *Dataset {
	if ordered == nil {
		ordered = make([]*transaction.Transaction, 0)
	}
	return &Dataset{Ordered: ordered, ByID: buildIndex(ordered)}
}

// buildIndex derives the keyed view from a finished ordered sequence.
func buildIndex(ordered []*transaction.Transaction) map[int]*transaction.Transaction {
	index := make(map[int]*transaction.Transaction, len(ordered))
	for _, t := range ordered {
		index[t.ID] = t
	}
	return index
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Ordered)
}

// MaxID returns the largest id in the dataset, or 0 when it is empty.
func (d *Dataset) MaxID() int {
	maxID := 0
	for _, t := range d.Ordered {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return maxID
}

type document struct {
	Transactions []record `xml:"transaction"`
}

type record struct {
	ID        *string `xml:"id,attr"`
	Type      *string `xml:"type"`
	Amount    *string `xml:"amount"`
	Sender    *string `xml:"sender"`
	Receiver  *string `xml:"receiver"`
	Timestamp *string `xml:"timestamp"`
	Reference *string `xml:"reference"`
	Status    *string `xml:"status"`
}

// Parse decodes a transaction document. It returns either every record or an
// error; a partially parsed document is never returned.
func Parse(r io.Reader) (*Dataset, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	ordered := make([]*transaction.Transaction, 0, len(doc.Transactions))
	seen := make(map[int]int, len(doc.Transactions))

	for i, rec := range doc.Transactions {
		t, err := rec.toTransaction()
		if err != nil {
			return nil, fmt.Errorf("%w: transaction #%d: %v", ErrMalformedRecord, i+1, err)
		}
		if first, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: transaction #%d: id %d already used by transaction #%d",
				ErrMalformedRecord, i+1, t.ID, first)
		}
		seen[t.ID] = i + 1
		ordered = append(ordered, t)
	}

	return NewDataset(ordered), nil
}

func (r record) toTransaction() (*transaction.Transaction, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"type", r.Type},
		{"amount", r.Amount},
		{"sender", r.Sender},
		{"receiver", r.Receiver},
		{"timestamp", r.Timestamp},
		{"reference", r.Reference},
		{"status", r.Status},
	}
	if r.ID == nil {
		return nil, errors.New("missing id attribute")
	}
	for _, f := range fields {
		if f.value == nil {
			return nil, fmt.Errorf("missing <%s> element", f.name)
		}
	}

	id, err := strconv.Atoi(strings.TrimSpace(*r.ID))
	if err != nil {
		return nil, fmt.Errorf("id %q is not an integer", *r.ID)
	}
	if id <= 0 {
		return nil, fmt.Errorf("id %d is not positive", id)
	}

	amount, err := transaction.ParseAmount(*r.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q is not numeric", *r.Amount)
	}

	return &transaction.Transaction{
		ID:        id,
		Type:      transaction.Label(*r.Type),
		Amount:    amount,
		Sender:    *r.Sender,
		Receiver:  *r.Receiver,
		Timestamp: *r.Timestamp,
		Reference: *r.Reference,
		Status:    transaction.Label(*r.Status),
	}, nil
}

// ParseFile opens and parses the document at path.
func ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Loader applies the startup load policy around ParseFile.
type Loader struct {
	Logger  *logging.Logger
	Metrics metrics.MetricsCollector

	// Strict makes Load return parse failures. Otherwise a failure is logged as
	// a warning and an empty dataset is returned so the service stays available.
	Strict bool
}

// Load reads the document at path according to the loader's policy.
func (l *Loader) Load(path string) (*Dataset, error) {
	logger := logging.OrNop(l.Logger).Named("loader")
	collector := metrics.OrNoOp(l.Metrics)

	start := time.Now()
	ds, err := ParseFile(path)
	duration := time.Since(start)

	if err != nil {
		collector.RecordLoad(0, false, duration)
		if l.Strict {
			logger.Error("transaction document failed to load",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil, err
		}
		logger.Warn("transaction document failed to load, serving an empty store",
			zap.String("path", path),
			zap.Error(err),
		)
		return Empty(), nil
	}

	collector.RecordLoad(ds.Len(), true, duration)
	logger.Info("transaction document loaded",
		zap.String("path", path),
		zap.Int("transactions", ds.Len()),
		zap.Int("max_id", ds.MaxID()),
		zap.Duration("duration", duration),
	)
	return ds, nil
}
