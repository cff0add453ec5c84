package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

// dashboardView is the data handed to index.html and stats.html.
type dashboardView struct {
	Report core.Report
	Today  string
	Kinds  []core.Kind
	Error  string
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().JSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the templates and pings the record store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
	}
	checks["security"] = map[string]interface{}{
		"suspicious_requests": s.detector.SuspiciousRequests(),
	}
	checks["requests_total"] = s.tracer.TotalRequests()

	NewHTMXResponse().Status(httpStatus).JSON(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.structured.LogError(r.Context(), "Templates not loaded", errors.New("templates not loaded"),
			log.ComponentTemplate, "index", log.NewFields().WithOperation("render"))
		InternalServerError("templates not loaded").Write(w)
		return
	}

	view := dashboardView{
		Today: s.stats.Today().String(),
		Kinds: []core.Kind{core.Expense, core.Income},
	}
	report, err := s.stats.Report(r.Context(), core.FilterInput{}, "")
	if err != nil {
		s.structured.LogError(r.Context(), "Dashboard stats failed", err,
			log.ComponentStats, "report", log.NewFields())
		view.Error = "Statistics are unavailable right now"
	}
	view.Report = report

	s.render(w, r, "index.html", view, nil)
}

// handleStatsPartial renders the stats panel for the submitted filter.
// Ignored inputs are reported as a warning notification.
func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.render(w, r, "stats.html", dashboardView{Report: report}, report.Advisories)
}

// handleStatsAPI serves the same report as JSON.
func (s *Server) handleStatsAPI(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	NewHTMXResponse().JSON(report).Write(w)
}

// report parses the filter from r and computes it. On failure the error
// response has already been written.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (core.Report, bool) {
	values, err := statsValues(r)
	if err != nil {
		s.structured.LogError(r.Context(), "Parse stats request failed", err,
			log.ComponentHTTP, "parse", log.NewFields())
		BadRequestError("Invalid request format").Write(w)
		return core.Report{}, false
	}

	in, budget := ParseFilterInput(values)
	report, err := s.stats.Report(r.Context(), in, budget)
	if err != nil {
		s.structured.LogError(r.Context(), "Stats computation failed", err,
			log.ComponentStats, "report",
			log.NewFields().WithRange(in.StartDate, in.EndDate))
		InternalServerError("Statistics are unavailable right now").Write(w)
		return core.Report{}, false
	}

	s.structured.LogStatsComputed(r.Context(),
		report.Filter.StartDate.String(), report.Filter.EndDate.String(),
		len(report.Records), len(report.Advisories))
	return report, true
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.structured.LogError(r.Context(), "Parse transaction request failed", err,
			log.ComponentHTTP, "parse", log.NewFields())
		BadRequestError("Invalid request format").Write(w)
		return
	}

	t, err := s.transactions.Record(r.Context(), ParseTransactionInput(parser))
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Transaction rejected",
			"field", verr.Field, "reason", verr.Reason,
			"error_type", log.ErrorTypeValidation)
		UnprocessableEntityError(verr.Error()).Write(w)
		return
	case err != nil:
		s.structured.LogError(r.Context(), "Failed to save transaction", err,
			log.ComponentStorage, "append", log.NewFields())
		InternalServerError("Error saving transaction").Write(w)
		return
	}

	s.structured.LogTransactionRecorded(r.Context(), t.ID, string(t.Kind), t.Category, t.Amount, t.Date.String())

	resp := NewHTMXResponse().
		TriggerTransactionCreated(t.ID, t.Kind, t.Date).
		TriggerFormReset().
		TriggerStatsRefresh()
	if parser.IsJSON() {
		resp.JSON(t).Write(w)
		return
	}
	resp.BodyHTML(fmt.Sprintf(`<div class="success">Recorded %s #%d: %s %s on %s</div>`,
		template.HTMLEscapeString(string(t.Kind)),
		t.ID,
		template.HTMLEscapeString(t.Category),
		formatAmount(t.Amount),
		t.Date.String())).Write(w)
}

// render executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}, advisories []core.Advisory) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err,
			log.ComponentTemplate, "render", log.NewFields().WithOperation(name))
		InternalServerError("render failed").Write(w)
		return
	}
	NewHTMXResponse().TriggerAdvisories(advisories).BodyHTML(buf.String()).Write(w)
}
