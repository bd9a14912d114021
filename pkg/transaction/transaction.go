// Package transaction defines the SMS transaction record, the request payloads
// that create and modify it, and the errors shared by the store and the API.
package transaction

import (
	"strings"
	"time"
)

// DefaultStatus is assigned to records created without a status.
const DefaultStatus = "PENDING"

// TimestampLayout is the format used when a record is created without a timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Transaction is a single financial-message record.
type Transaction struct {
	ID        int     `json:"id"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Timestamp string  `json:"timestamp"`
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
}

// Label normalizes a type or status label to its stored form.
func Label(s string) string {
	return strings.ToUpper(s)
}

// FormatTimestamp renders t the way default timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Filter narrows a listing by exact match on status and/or type.
// Empty fields match everything.
type Filter struct {
	Status string
	Type   string
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return f.Status == "" && f.Type == ""
}

// Match reports whether t satisfies the filter. Criteria are compared in
// their normalized (upper-cased) form.
func (f Filter) Match(t *Transaction) bool {
	if f.Status != "" && t.Status != Label(f.Status) {
		return false
	}
	if f.Type != "" && t.Type != Label(f.Type) {
		return false
	}
	return true
}
