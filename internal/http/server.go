package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"ledger/internal/log"
	"ledger/internal/middleware/auth"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

const (
	requestTimeout = 10 * time.Second
	exportTimeout  = time.Minute

	// importUploadPath is where clients start over after a stale preview.
	importUploadPath = "/api/imports"
)

// Options configures the API server.
type Options struct {
	Addr           string
	AuthHeader     string
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
}

// Server exposes the ledger as a JSON API under /api.
type Server struct {
	http.Server
	ledger          *services.LedgerService
	logger          *log.Logger
	router          *mux.Router
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	ipResolver      *security.IPResolver
	maxUpload       int64
	started         time.Time
	shutdownOnce    sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(ledger *services.LedgerService, logger *log.Logger, opts Options) (*Server, error) {
	resolver, err := security.NewIPResolver()
	if err != nil {
		return nil, fmt.Errorf("client ip resolver: %w", err)
	}

	s := &Server{
		ledger:          ledger,
		logger:          logger.WithComponent(log.ComponentHTTP),
		router:          mux.NewRouter(),
		rateLimiter:     ratelimit.NewLimiter(opts.RateLimit),
		traceMiddleware: trace.NewMiddleware(resolver.ClientIP),
		ipResolver:      resolver,
		maxUpload:       opts.MaxUploadBytes,
		started:         time.Now(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.routes(opts.AuthHeader)
	return s, nil
}

func (s *Server) routes(authHeader string) {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Use(
		log.Middleware(s.logger),
		s.traceMiddleware.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
	)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(
		auth.Middleware(authHeader, s.handleUnauthorized),
		s.rateLimiter.Middleware(s.rateLimitKey, s.handleRateLimited),
	)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleGetCategory).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/tags", s.handleListTags).Methods(http.MethodGet)
	api.HandleFunc("/tags", s.handleCreateTag).Methods(http.MethodPost)
	api.HandleFunc("/tags/{id:[0-9]+}", s.handleGetTag).Methods(http.MethodGet)
	api.HandleFunc("/tags/{id:[0-9]+}", s.handleUpdateTag).Methods(http.MethodPut)
	api.HandleFunc("/tags/{id:[0-9]+}", s.handleDeleteTag).Methods(http.MethodDelete)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleUpdateBudget).Methods(http.MethodPut)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleDeleteBudget).Methods(http.MethodDelete)

	api.HandleFunc("/imports", s.handleUploadImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/{token}/commit", s.handleCommitImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/{token}", s.handleAbandonImport).Methods(http.MethodDelete)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	api.HandleFunc("/reports/monthly", s.handleMonthlyReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/categories", s.handleCategoryReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/budgets", s.handleBudgetReport).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
}

// rateLimitKey limits per user; the client address is a fallback that
// only applies if auth is ever bypassed.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := auth.UserID(r.Context()); ok {
		return "user:" + id
	}
	return "ip:" + s.ipResolver.ClientIP(r)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
