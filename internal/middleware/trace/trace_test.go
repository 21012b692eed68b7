package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saveup/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := New(Options{}).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		if log.FromContext(r.Context()).Component() == "unknown" {
			t.Error("handler should see a request-scoped logger")
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/goals", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header %q, context %q", got, seen)
	}
}

func TestMiddlewareReusesCallerRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reused bool
	}{
		{"well formed", "abc-123", true},
		{"injection attempt", "abc\n123", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Options{}).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.header)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if got := rr.Header().Get(HeaderRequestID) == tt.header; got != tt.reused {
				t.Fatalf("reused = %v, want %v", got, tt.reused)
			}
		})
	}
}

func TestMiddlewareTagsGoalOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: log.NewHandler(&buf, slog.LevelInfo, "json")})
	tr := New(Options{
		Logger:   logger,
		ClientIP: func(*http.Request) string { return "198.51.100.7" },
		Route: func(r *http.Request) Route {
			return Route{Operation: log.OpDeposit, GoalID: "g-42"}
		},
	})
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Deposit recorded")
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/goals/g-42/deposits", nil)
	req.Header.Set(HeaderRequestID, "r-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected handler and completion records, got %q", buf.String())
	}
	for _, line := range lines {
		for _, want := range []string{`"request_id":"r-1"`, `"operation":"deposit"`, `"goal_id":"g-42"`} {
			if !strings.Contains(line, want) {
				t.Errorf("record missing %s: %s", want, line)
			}
		}
	}
	if !strings.Contains(lines[1], `"status_code":409`) || !strings.Contains(lines[1], `"client_ip":"198.51.100.7"`) {
		t.Errorf("unexpected completion record %s", lines[1])
	}
}

func TestMiddlewareStats(t *testing.T) {
	tr := New(Options{Logger: log.Discard()})
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			w.WriteHeader(http.StatusOK) // superfluous, ignored
		}
	}))

	for _, p := range []string{"/", "/boom", "/"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := tr.Stats()
	if got.Requests != 3 || got.ServerErrors != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}
}
