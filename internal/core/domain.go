package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for storage, filtering and display.
const DateLayout = "2006-01-02"

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind tells whether a transaction adds to or takes from the balance.
	Kind string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID        int64     `json:"id"`
		Amount    float64   `json:"amount"`
		Kind      Kind      `json:"kind"`
		Category  string    `json:"category"`
		Date      Date      `json:"date"`
		Note      string    `json:"note"`
		CreatedAt time.Time `json:"created_at"`
	}

	// TransactionInput is the raw insert request before parsing.
	TransactionInput struct {
		Amount   string
		Kind     string
		Category string
		Date     string
		Note     string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the ISO form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseKind accepts only "income" and "expense" (case-insensitive, trimmed).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (t Transaction) Validate() error {
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) || t.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be a positive number"}
	}
	if !t.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Reason: "cannot be empty"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "cannot be empty"}
	}
	return nil
}

// NewTransaction parses and validates a raw insert request. A missing date
// defaults to today according to clock. Nothing is stored here; a non-nil
// error is always a *ValidationError.
func NewTransaction(in TransactionInput, clock Clock) (Transaction, error) {
	amount := ParseNumber(in.Amount)
	switch amount.State {
	case NumberAbsent:
		return Transaction{}, &ValidationError{Field: "amount", Reason: "is required"}
	case NumberMalformed:
		return Transaction{}, &ValidationError{Field: "amount", Reason: "must be a number"}
	}

	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Transaction{}, err
	}

	date := clock.Today()
	if raw := strings.TrimSpace(in.Date); raw != "" {
		date, err = ParseDate(raw)
		if err != nil {
			return Transaction{}, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
	}

	t := Transaction{
		Amount:   amount.Value,
		Kind:     kind,
		Category: strings.TrimSpace(in.Category),
		Date:     date,
		Note:     strings.TrimSpace(in.Note),
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
