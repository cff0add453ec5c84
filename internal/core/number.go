// Package core provides the ledger domain: transactions, filters, aggregate
// results and the parsing rules shared by the write and read paths.
//
// This file contains the explicit number-parsing step. The caller decides what
// a failure means: the write path rejects, the filter path degrades.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type NumberState int

const (
	NumberAbsent NumberState = iota
	NumberParsed
	NumberMalformed
)

// Number is the outcome of parsing a user-supplied numeric string.
type Number struct {
	Raw   string
	Value float64
	State NumberState
}

// Ok reports whether Value holds a parsed number.
func (n Number) Ok() bool {
	return n.State == NumberParsed
}

// Ptr returns a pointer to Value, or nil when the number was not parsed.
func (n Number) Ptr() *float64 {
	if !n.Ok() {
		return nil
	}
	v := n.Value
	return &v
}

// ParseNumber parses s as a decimal number.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Blank input is NumberAbsent; anything decimal.NewFromString rejects is
// NumberMalformed, as is anything too large for a float64. Sign is preserved: positivity is a write-path rule.
//
// Examples:
//   ParseNumber("12.34") -> {Value: 12.34, State: NumberParsed}
//   ParseNumber("12,34") -> {Value: 12.34, State: NumberParsed}
//   ParseNumber("")      -> {State: NumberAbsent}
//   ParseNumber("abc")   -> {State: NumberMalformed}
//   ParseNumber("1e400") -> {State: NumberMalformed}
func ParseNumber(s string) Number {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Number{Raw: s, State: NumberAbsent}
	}
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Number{Raw: s, State: NumberMalformed}
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Number{Raw: s, State: NumberMalformed}
	}
	return Number{Raw: s, Value: v, State: NumberParsed}
}
