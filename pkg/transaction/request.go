package transaction

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Amount is a monetary value decoded from either a JSON number or a numeric
// string. Anything else fails decoding with a validation error.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return invalidAmount(raw)
		}
		raw = strings.TrimSpace(s)
	} else if raw == "" || raw == "true" || raw == "false" || raw[0] == '{' || raw[0] == '[' {
		return invalidAmount(raw)
	}

	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// ParseAmount converts s to a finite float64.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidAmount(s)
	}
	return v, nil
}

func invalidAmount(raw string) error {
	return &ValidationError{
		Field:  "amount",
		Reason: fmt.Sprintf("could not convert %s to a number", raw),
	}
}

// CreateRequest is the payload accepted when creating a transaction.
// Nil fields were absent from the request.
type CreateRequest struct {
	Type      *string `json:"type"`
	Amount    *Amount `json:"amount"`
	Sender    *string `json:"sender"`
	Receiver  *string `json:"receiver"`
	Timestamp *string `json:"timestamp"`
	Reference *string `json:"reference"`
	Status    *string `json:"status"`
}

// Validate checks that every required field is present. Fields are checked
// in a fixed order so the first missing one is always reported.
func (r CreateRequest) Validate() error {
	switch {
	case r.Type == nil:
		return MissingField("type")
	case r.Amount == nil:
		return MissingField("amount")
	case r.Sender == nil:
		return MissingField("sender")
	case r.Receiver == nil:
		return MissingField("receiver")
	case r.Reference == nil:
		return MissingField("reference")
	}
	return nil
}

// Build validates the request and returns the normalized record it describes.
// now supplies the timestamp when none was given.
func (r CreateRequest) Build(id int, now time.Time) (Transaction, error) {
	if err := r.Validate(); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:        id,
		Type:      Label(*r.Type),
		Amount:    float64(*r.Amount),
		Sender:    *r.Sender,
		Receiver:  *r.Receiver,
		Timestamp: FormatTimestamp(now),
		Reference: *r.Reference,
		Status:    DefaultStatus,
	}
	if r.Timestamp != nil {
		t.Timestamp = *r.Timestamp
	}
	if r.Status != nil {
		t.Status = Label(*r.Status)
	}
	return t, nil
}

// UpdateRequest is the partial payload accepted when updating a transaction.
// Only these fields can change; id and timestamp are fixed once assigned.
type UpdateRequest struct {
	Type      *string `json:"type"`
	Amount    *Amount `json:"amount"`
	Sender    *string `json:"sender"`
	Receiver  *string `json:"receiver"`
	Status    *string `json:"status"`
	Reference *string `json:"reference"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateRequest) IsEmpty() bool {
	return r.Type == nil && r.Amount == nil && r.Sender == nil &&
		r.Receiver == nil && r.Status == nil && r.Reference == nil
}

// Apply writes the present fields onto t.
func (r UpdateRequest) Apply(t *Transaction) {
	if r.Type != nil {
		t.Type = Label(*r.Type)
	}
	if r.Amount != nil {
		t.Amount = float64(*r.Amount)
	}
	if r.Sender != nil {
		t.Sender = *r.Sender
	}
	if r.Receiver != nil {
		t.Receiver = *r.Receiver
	}
	if r.Status != nil {
		t.Status = Label(*r.Status)
	}
	if r.Reference != nil {
		t.Reference = *r.Reference
	}
}
