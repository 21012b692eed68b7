// Package trace gives every API request an id and a request-scoped logger
// that names the goal operation it performs, then logs the outcome.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"saveup/internal/log"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Route is what a request does to the goal set. Both fields may be empty.
type Route struct {
	Operation string
	GoalID    string
}

type Options struct {
	Logger   *log.Logger
	ClientIP func(*http.Request) string
	Route    func(*http.Request) Route
}

// Stats are running request counters.
type Stats struct {
	Requests     int64
	ServerErrors int64
	LastLatency  time.Duration
}

// Tracer is the request tracing middleware.
type Tracer struct {
	opts   Options
	events *log.StructuredLogger

	requests     atomic.Int64
	serverErrors atomic.Int64
	lastLatency  atomic.Int64
}

func New(opts Options) *Tracer {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.ClientIP == nil {
		opts.ClientIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	if opts.Route == nil {
		opts.Route = func(*http.Request) Route { return Route{} }
	}
	return &Tracer{opts: opts, events: log.NewStructuredLogger(opts.Logger)}
}

func (t *Tracer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		t.requests.Add(1)

		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = newRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		route := t.opts.Route(r)
		attrs := []any{log.FieldRequestID, id}
		if route.Operation != "" {
			attrs = append(attrs, log.FieldOperation, route.Operation)
		}
		if route.GoalID != "" {
			attrs = append(attrs, log.FieldGoalID, route.GoalID)
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = log.NewContext(ctx, log.FromContextOr(ctx, t.opts.Logger).With(attrs...))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		elapsed := time.Since(start)
		t.lastLatency.Store(int64(elapsed))
		if sw.status() >= http.StatusInternalServerError {
			t.serverErrors.Add(1)
		}
		t.events.LogRequest(ctx, log.RequestRecord{
			Method:   r.Method,
			Path:     r.URL.Path,
			ClientIP: t.opts.ClientIP(r),
			Status:   sw.status(),
			Duration: elapsed,
		})
	})
}

func (t *Tracer) Stats() Stats {
	return Stats{
		Requests:     t.requests.Load(),
		ServerErrors: t.serverErrors.Load(),
		LastLatency:  time.Duration(t.lastLatency.Load()),
	}
}

// statusWriter remembers the first status written.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return "req_" + hex.EncodeToString(b)
}

// RequestID returns the id the tracer gave the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
