package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
	appweb "ledger/web"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the dashboard is served from.
type Deps struct {
	Stats              *services.StatsService
	Transactions       *services.TransactionService
	Store              Pinger
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates    *template.Template
	stats        *services.StatsService
	transactions *services.TransactionService
	store        Pinger
	started      time.Time

	logger     *log.Logger
	structured *log.StructuredLogger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background()).WithComponent(log.ComponentHTTP)
	}

	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		stats:        deps.Stats,
		transactions: deps.Transactions,
		store:        deps.Store,
		started:      time.Now(),
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		limiter:      ratelimit.NewLimiter(rlConfig),
		detector:     detector,
		tracer:       trace.NewMiddleware(detector.ExtractClientIP, logger),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(template.FuncMap{
		"amount": formatAmount,
		"bars":   categoryBars,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
		t = nil
	}
	s.templates = t

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	statsLogs := log.ComponentMiddleware(log.ComponentStats)
	mux.Handle("/ui/stats", statsLogs(http.HandlerFunc(s.handleStatsPartial)))
	mux.Handle("GET /api/stats", statsLogs(http.HandlerFunc(s.handleStatsAPI)))
	mux.Handle("/transactions",
		s.limiter.Middleware(detector.ExtractClientIP, onLimit)(
			log.ComponentMiddleware(log.ComponentLedger)(http.HandlerFunc(s.handleCreateTransaction))))

	var handler http.Handler = log.RequestIDMiddleware(requestID)(mux)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
