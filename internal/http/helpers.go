package http

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// categoryBar is one row of the expense breakdown chart.
type categoryBar struct {
	Name   string
	Amount float64
	Width  int // percent of the largest category
}

// categoryBars scales the breakdown against its largest entry. Input order
// is kept.
func categoryBars(cats []core.CategoryAmount) []categoryBar {
	var top float64
	for _, c := range cats {
		top = math.Max(top, c.Amount)
	}
	bars := make([]categoryBar, len(cats))
	for i, c := range cats {
		w := 0
		if top > 0 {
			w = int(math.Round(c.Amount / top * 100))
		}
		bars[i] = categoryBar{Name: c.Name, Amount: c.Amount, Width: w}
	}
	return bars
}

// formatAmount renders v with two decimals and a thousands separator.
func formatAmount(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
