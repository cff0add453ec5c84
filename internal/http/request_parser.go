// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for common
// form parsing, filter extraction, and input sanitization patterns.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
)

// Form and query field names shared by the dashboard and the JSON API.
const (
	fieldStartDate = "start_date"
	fieldEndDate   = "end_date"
	fieldCategory  = "category"
	fieldMinAmount = "min_amount"
	fieldMaxAmount = "max_amount"
	fieldBudget    = "budget"
	fieldAmount    = "amount"
	fieldKind      = "kind"
	fieldDate      = "date"
	fieldNote      = "note"
)

// valueGetter is satisfied by url.Values and *RequestBodyParser.
type valueGetter interface {
	Get(key string) string
}

// ParseFilterInput extracts the raw stats query. Nothing is validated here;
// core.BuildFilter decides what degrades.
func ParseFilterInput(v valueGetter) (core.FilterInput, string) {
	get := func(k string) string { return sanitizeInput(v.Get(k)) }
	return core.FilterInput{
		StartDate: get(fieldStartDate),
		EndDate:   get(fieldEndDate),
		Category:  get(fieldCategory),
		MinAmount: get(fieldMinAmount),
		MaxAmount: get(fieldMaxAmount),
	}, get(fieldBudget)
}

// ParseTransactionInput extracts the raw insert request.
func ParseTransactionInput(v valueGetter) core.TransactionInput {
	get := func(k string) string { return sanitizeInput(v.Get(k)) }
	return core.TransactionInput{
		Amount:   get(fieldAmount),
		Kind:     get(fieldKind),
		Category: get(fieldCategory),
		Date:     get(fieldDate),
		Note:     get(fieldNote),
	}
}

// statsValues returns the values a stats request was made with: the query
// string for GET, the parsed body merged over the query for POST.
func statsValues(r *http.Request) (valueGetter, error) {
	if r.Method != http.MethodPost {
		return r.URL.Query(), nil
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return mergedValues{primary: p, fallback: r.URL.Query()}, nil
}

type mergedValues struct {
	primary  valueGetter
	fallback url.Values
}

func (m mergedValues) Get(key string) string {
	if v := m.primary.Get(key); v != "" {
		return v
	}
	return m.fallback.Get(key)
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// maxBodyBytes bounds request bodies; a transaction or filter is tiny.
const maxBodyBytes = 64 << 10

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
