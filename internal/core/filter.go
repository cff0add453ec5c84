package core

import (
	"fmt"
	"strings"
)

// Filter is the conjunctive set of constraints shared by every aggregate and
// by the detail listing. Nil bounds are unbounded.
type Filter struct {
	StartDate Date     `json:"start_date"`
	EndDate   Date     `json:"end_date"`
	Category  string   `json:"category,omitempty"`
	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`
}

// FilterInput is the raw query request before parsing.
type FilterInput struct {
	StartDate string
	EndDate   string
	Category  string
	MinAmount string
	MaxAmount string
}

// Advisory reports an input that was ignored instead of failing the request.
type Advisory struct {
	Field   string `json:"field"`
	Raw     string `json:"raw"`
	Message string `json:"message"`
}

// Matches evaluates the filter against a single transaction. Store adapters
// that cannot push predicates down to a query language use it directly.
func (f Filter) Matches(t Transaction) bool {
	d := t.Date.String()
	if d < f.StartDate.String() || d > f.EndDate.String() {
		return false
	}
	if c := strings.TrimSpace(f.Category); c != "" && t.Category != c {
		return false
	}
	if f.MinAmount != nil && t.Amount < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && t.Amount > *f.MaxAmount {
		return false
	}
	return true
}

// BuildFilter turns raw request fields into a Filter.
//
// Missing or unparsable dates fall back to the current month of clock.
// A blank category means no category predicate. Malformed amount bounds are
// dropped and reported as advisories; they never fail the request.
func BuildFilter(in FilterInput, clock Clock) (Filter, []Advisory) {
	var advisories []Advisory
	monthStart, monthEnd := MonthRange(clock.Today())

	f := Filter{
		StartDate: monthStart,
		EndDate:   monthEnd,
		Category:  strings.TrimSpace(in.Category),
	}

	if d, adv := parseDateBound("start_date", in.StartDate); adv != nil {
		advisories = append(advisories, *adv)
	} else if !d.IsZero() {
		f.StartDate = d
	}
	if d, adv := parseDateBound("end_date", in.EndDate); adv != nil {
		advisories = append(advisories, *adv)
	} else if !d.IsZero() {
		f.EndDate = d
	}

	for _, b := range []struct {
		field string
		raw   string
		dst   **float64
	}{
		{"min_amount", in.MinAmount, &f.MinAmount},
		{"max_amount", in.MaxAmount, &f.MaxAmount},
	} {
		n := ParseNumber(b.raw)
		switch n.State {
		case NumberParsed:
			*b.dst = n.Ptr()
		case NumberMalformed:
			advisories = append(advisories, Advisory{
				Field:   b.field,
				Raw:     b.raw,
				Message: fmt.Sprintf("%s is not a number, condition ignored", b.field),
			})
		}
	}

	return f, advisories
}

// ParseBudget returns the requested budget, or def when raw is blank or malformed.
func ParseBudget(raw string, def float64) (float64, *Advisory) {
	n := ParseNumber(raw)
	switch n.State {
	case NumberParsed:
		return n.Value, nil
	case NumberMalformed:
		return def, &Advisory{Field: "budget", Raw: raw, Message: "budget is not a number, default used"}
	}
	return def, nil
}

func parseDateBound(field, raw string) (Date, *Advisory) {
	if strings.TrimSpace(raw) == "" {
		return Date{}, nil
	}
	d, err := ParseDate(raw)
	if err != nil {
		return Date{}, &Advisory{Field: field, Raw: raw, Message: field + " is not a YYYY-MM-DD date, default used"}
	}
	return d, nil
}
