package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"saveup/internal/cache"
	"saveup/internal/goals"
	"saveup/internal/log"
	"saveup/internal/middleware/ratelimit"
	"saveup/internal/middleware/security"
	"saveup/internal/middleware/trace"
)

// Options configures the API server. Zero values select defaults.
type Options struct {
	Logger              *log.Logger
	Ready               func(context.Context) error
	RateLimitPerMinute  int
	TrustedProxies      []string
	IdempotencyTTL      time.Duration
	IdempotencyCapacity int
	Now                 func() time.Time
}

type Server struct {
	http.Server
	store   *goals.Store
	logger  *log.Logger
	events  *log.StructuredLogger
	ready   func(context.Context) error
	now     func() time.Time
	started time.Time

	limiter      *ratelimit.Limiter
	idempotency  *cache.LRUCache[storedResponse]
	inflight     singleflight.Group
	stopCleanup  context.CancelFunc
	cleanupDone  chan struct{}
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware around store, returning a
// ready-to-run server. Shutdown releases its background goroutines.
func NewServer(addr string, store *goals.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.IdempotencyCapacity <= 0 {
		opts.IdempotencyCapacity = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:       store,
		logger:      logger,
		events:      log.NewStructuredLogger(opts.Logger),
		ready:       opts.Ready,
		now:         opts.Now,
		started:     time.Now(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{PerMinute: opts.RateLimitPerMinute}),
		idempotency: cache.NewLRUCache[storedResponse](opts.IdempotencyCapacity, opts.IdempotencyTTL),
		cleanupDone: make(chan struct{}),
	}

	manager := cache.NewManager(10*time.Minute, opts.Logger)
	manager.Register("idempotency", s.idempotency)
	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	go func() {
		defer close(s.cleanupDone)
		_ = manager.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/goals/{id}/deposits", s.handleDeposit)
	mux.HandleFunc("POST /api/goals/{id}/withdrawals", s.handleWithdraw)
	mux.HandleFunc("POST /api/goals/{id}/lock", s.handleToggleLock)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("DELETE /api/error", s.handleClearError)

	clients, err := security.NewClientResolver(opts.TrustedProxies...)
	if err != nil {
		logger.Warn("Ignoring trusted proxies", log.FieldError, err.Error())
	}
	guard := security.NewGuard(clients.ClientIP, opts.Logger)
	tracer := trace.New(trace.Options{
		Logger:   opts.Logger,
		ClientIP: clients.ClientIP,
		Route: func(r *http.Request) trace.Route {
			rt := routeOf(r)
			return trace.Route{Operation: rt.op, GoalID: rt.goalID}
		},
	})
	limit := s.limiter.Middleware(func(r *http.Request) ratelimit.Rule {
		rt := routeOf(r)
		if !rt.mutating {
			return ratelimit.Rule{}
		}
		return ratelimit.Rule{Client: clients.ClientIP(r), Operation: rt.op}
	}, s.onRateLimit)

	var handler http.Handler = mux
	handler = s.idempotent(handler)
	handler = limit(handler)
	handler = security.Headers(365 * 24 * time.Hour)(handler)
	handler = guard.Middleware(handler)
	handler = tracer.Middleware(handler)
	handler = log.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopCleanup()
		<-s.cleanupDone
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, rule ratelimit.Rule) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldOperation, rule.Operation,
		log.FieldClientIP, rule.Client,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error: "Rate limit exceeded. Please try again later.",
		Kind:  kindRateLimited,
	})
}
