package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage/memory"
)

var testClock = core.FixedClock{Day: core.NewDate(2024, 1, 20)}

type brokenStore struct{}

func (brokenStore) Append(context.Context, core.Transaction) (int64, error) {
	return 0, errors.New("disk full")
}

func (brokenStore) View(context.Context, func(ledger.Snapshot) error) error {
	return core.WrapStorage("begin read", errors.New("database is locked"))
}

func (brokenStore) Ping(context.Context) error { return errors.New("unreachable") }

func newTestServer(t *testing.T, store *memory.Store) *Server {
	t.Helper()
	srv := NewServer(":0", Deps{
		Stats:        services.NewStatsService(store, testClock, 30000),
		Transactions: services.NewTransactionService(store, nil, testClock),
		Store:        store,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func seed(t *testing.T, store *memory.Store, in core.TransactionInput) {
	t.Helper()
	_, err := services.NewTransactionService(store, nil, testClock).Record(context.Background(), in)
	require.NoError(t, err)
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Record Transaction")
	assert.Contains(t, body, `value="2024-01-20"`)
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.Contains(t, body, `value="2024-01-31"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := NewServer(":0", Deps{
		Stats:        services.NewStatsService(brokenStore{}, testClock, 30000),
		Transactions: services.NewTransactionService(brokenStore{}, nil, testClock),
		Store:        brokenStore{},
	})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unreachable")
}

func TestCreateTransaction(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store)

	t.Run("invalid amount writes nothing", func(t *testing.T) {
		rr := serve(srv, postForm("/transactions", url.Values{
			"amount": {"-5"}, "kind": {"expense"}, "category": {"food"},
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid amount")

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invalid kind", func(t *testing.T) {
		rr := serve(srv, postForm("/transactions", url.Values{
			"amount": {"5"}, "kind": {"transfer"}, "category": {"food"},
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("form success", func(t *testing.T) {
		rr := serve(srv, postForm("/transactions", url.Values{
			"amount": {"12.5"}, "kind": {"expense"}, "category": {"food"}, "note": {"<b>lunch</b>"},
		}))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Recorded expense #1")
		assert.Contains(t, rr.Body.String(), "2024-01-20")

		var triggers map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers))
		assert.Contains(t, triggers, "transaction:created")
		assert.Contains(t, triggers, "form:reset")
		assert.Contains(t, triggers, "stats:refresh")
	})

	t.Run("json success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/transactions",
			strings.NewReader(`{"amount": 1000, "kind": "income", "category": "salary", "date": "2024-01-05"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := serve(srv, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var got core.Transaction
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, int64(2), got.ID)
		assert.Equal(t, core.Income, got.Kind)
		assert.Equal(t, "2024-01-05", got.Date.String())
	})

	t.Run("method not allowed", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		assert.Equal(t, "POST", rr.Header().Get("Allow"))
	})
}

func TestRouteLogsCarryComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})
	store := memory.New()
	srv := NewServer(":0", Deps{
		Stats:        services.NewStatsService(store, testClock, 30000),
		Transactions: services.NewTransactionService(store, nil, testClock),
		Store:        store,
		Logger:       logger,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := serve(srv, postForm("/transactions", url.Values{
		"amount": {"-5"}, "kind": {"expense"}, "category": {"food"},
	}))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var rejected string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Transaction rejected") {
			rejected = line
		}
	}
	require.NotEmpty(t, rejected)
	assert.Contains(t, rejected, "component="+log.ComponentLedger)
}

func TestCreateTransactionStorageFailure(t *testing.T) {
	srv := NewServer(":0", Deps{
		Stats:        services.NewStatsService(brokenStore{}, testClock, 30000),
		Transactions: services.NewTransactionService(brokenStore{}, nil, testClock),
		Store:        brokenStore{},
	})
	defer srv.Shutdown(context.Background())

	rr := serve(srv, postForm("/transactions", url.Values{
		"amount": {"5"}, "kind": {"expense"}, "category": {"food"},
	}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestStatsAPI(t *testing.T) {
	store := memory.New()
	seed(t, store, core.TransactionInput{Amount: "1000", Kind: "income", Category: "salary", Date: "2024-01-02"})
	seed(t, store, core.TransactionInput{Amount: "50", Kind: "expense", Category: "food", Date: "2024-01-03"})
	seed(t, store, core.TransactionInput{Amount: "50", Kind: "expense", Category: "books", Date: "2024-01-04"})
	seed(t, store, core.TransactionInput{Amount: "200", Kind: "expense", Category: "rent", Date: "2024-01-05"})
	seed(t, store, core.TransactionInput{Amount: "999", Kind: "expense", Category: "rent", Date: "2024-02-01"})
	srv := newTestServer(t, store)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stats?budget=400", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report core.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1000.0, report.TotalIncome)
	assert.Equal(t, 300.0, report.TotalExpense)
	assert.Equal(t, 100.0, report.BudgetDiff)
	assert.Equal(t, 700.0, report.Balance)
	assert.Equal(t, []core.CategoryAmount{
		{Name: "rent", Amount: 200},
		{Name: "books", Amount: 50},
		{Name: "food", Amount: 50},
	}, report.Categories)
	require.Len(t, report.Records, 4)
	assert.Equal(t, "2024-01-05", report.Records[0].Date.String())
	assert.Empty(t, report.Advisories)
}

func TestStatsAPIAdvisories(t *testing.T) {
	store := memory.New()
	seed(t, store, core.TransactionInput{Amount: "10", Kind: "expense", Category: "food", Date: "2024-01-03"})
	srv := newTestServer(t, store)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stats?min_amount=abc&budget=lots", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report core.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Nil(t, report.Filter.MinAmount)
	assert.Equal(t, 30000.0, report.Budget)
	assert.Len(t, report.Records, 1)
	require.Len(t, report.Advisories, 2)
	assert.Equal(t, "min_amount", report.Advisories[0].Field)
	assert.Equal(t, "budget", report.Advisories[1].Field)
}

func TestStatsAPIOverflowingNumbersDegrade(t *testing.T) {
	store := memory.New()
	seed(t, store, core.TransactionInput{Amount: "10", Kind: "expense", Category: "food", Date: "2024-01-03"})
	srv := newTestServer(t, store)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stats?min_amount=1e400&budget=1e400", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report core.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Nil(t, report.Filter.MinAmount)
	assert.Equal(t, 30000.0, report.Budget)
	require.Len(t, report.Advisories, 2)
	assert.Equal(t, "min_amount", report.Advisories[0].Field)
	assert.Equal(t, "budget", report.Advisories[1].Field)
}

func TestStatsPartial(t *testing.T) {
	store := memory.New()
	seed(t, store, core.TransactionInput{Amount: "1234.5", Kind: "expense", Category: "rent", Date: "2024-01-03"})
	seed(t, store, core.TransactionInput{Amount: "20", Kind: "expense", Category: "food", Date: "2024-01-04"})
	srv := newTestServer(t, store)

	t.Run("filtered", func(t *testing.T) {
		rr := serve(srv, postForm("/ui/stats", url.Values{"category": {"rent"}}))
		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, "1,234.50")
		assert.NotContains(t, body, ">food<")
		assert.Empty(t, rr.Header().Get("HX-Trigger"))
	})

	t.Run("advisory becomes warning", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/stats?max_amount=x", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var triggers map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers))
		assert.Equal(t, "warning", triggers["show-notification"]["type"])
		assert.Equal(t, "max_amount is not a number, condition ignored", triggers["show-notification"]["message"])
		assert.Contains(t, rr.Body.String(), "food")
	})

	t.Run("empty range", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/ui/stats?start_date=2023-01-01&end_date=2023-01-31", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "No transactions match.")
	})

	t.Run("method not allowed", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/ui/stats", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestRateLimitOnTransactions(t *testing.T) {
	store := memory.New()
	srv := NewServer(":0", Deps{
		Stats:              services.NewStatsService(store, testClock, 30000),
		Transactions:       services.NewTransactionService(store, nil, testClock),
		Store:              store,
		RateLimitPerMinute: 1,
	})
	defer srv.Shutdown(context.Background())

	form := url.Values{"amount": {"5"}, "kind": {"expense"}, "category": {"food"}}
	assert.Equal(t, http.StatusOK, serve(srv, postForm("/transactions", form)).Code)

	rr := serve(srv, postForm("/transactions", form))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:          "0.00",
		12.5:       "12.50",
		1234.5:     "1,234.50",
		-1234567.1: "-1,234,567.10",
		999:        "999.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatAmount(in), "formatAmount(%v)", in)
	}
}

func TestCategoryBars(t *testing.T) {
	bars := categoryBars([]core.CategoryAmount{{Name: "rent", Amount: 200}, {Name: "food", Amount: 50}})
	require.Len(t, bars, 2)
	assert.Equal(t, 100, bars[0].Width)
	assert.Equal(t, 25, bars[1].Width)
	assert.Empty(t, categoryBars(nil))
}
