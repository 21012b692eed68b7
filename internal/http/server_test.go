package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"saveup/internal/blob/memory"
	"saveup/internal/goals"
	"saveup/internal/persist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T, opts Options) (*Server, *goals.Store) {
	t.Helper()
	store := goals.NewStore(persist.New(memory.New(), ""))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(":0", store, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestReadyFailsWhenStorageDown(t *testing.T) {
	srv, _ := newTestServer(t, Options{Ready: func(context.Context) error {
		return errors.New("connection refused")
	}})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("check detail missing: %s", rr.Body.String())
	}
}

func TestReadyWhileLoading(t *testing.T) {
	store := goals.NewStore(persist.New(memory.New(), ""))
	srv := NewServer(":0", store, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", rr.Code)
	}
}

func TestUnusualMethodRejected(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodTrace, "/api/goals", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodDelete, "/api/goals/missing", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodDelete, "/api/goals/missing", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After missing")
	}
	if resp := decode[errorResponse](t, rr); resp.Kind != kindRateLimited {
		t.Fatalf("unexpected kind %q", resp.Kind)
	}

	// Reads are not limited.
	if rr := do(t, srv, http.MethodGet, "/api/goals", ""); rr.Code != http.StatusOK {
		t.Fatalf("read limited: %d", rr.Code)
	}
}

func TestIdempotentCreateIsReplayed(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	body := `{"title":"PS5","targetAmount":500}`

	first := do(t, srv, http.MethodPost, "/api/goals", body, HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", first.Code, first.Body.String())
	}
	second := do(t, srv, http.MethodPost, "/api/goals", body, HeaderIdempotencyKey, "k-1")
	if second.Code != http.StatusCreated || second.Header().Get(HeaderReplayed) != "true" {
		t.Fatalf("expected replay, got %d replayed=%q", second.Code, second.Header().Get(HeaderReplayed))
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs")
	}
	if n := len(store.Snapshot().Goals); n != 1 {
		t.Fatalf("expected one goal, got %d", n)
	}

	// A different key creates another goal.
	if rr := do(t, srv, http.MethodPost, "/api/goals", body, HeaderIdempotencyKey, "k-2"); rr.Code != http.StatusCreated {
		t.Fatalf("second key status=%d", rr.Code)
	}
	if n := len(store.Snapshot().Goals); n != 2 {
		t.Fatalf("expected two goals, got %d", n)
	}
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/goals", `{}`, HeaderIdempotencyKey, strings.Repeat("k", 256))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestIdempotencyKeyBoundToBody(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	first := do(t, srv, http.MethodPost, "/api/goals", `{"title":"PS5","targetAmount":500}`, HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", first.Code, first.Body.String())
	}
	rr := do(t, srv, http.MethodPost, "/api/goals", `{"title":"Bike","targetAmount":300}`, HeaderIdempotencyKey, "k-1")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a reused key, got %d body=%s", rr.Code, rr.Body.String())
	}
	if resp := decode[errorResponse](t, rr); resp.Kind != kindIdempotencyMismatch || resp.Error != msgIdempotencyMismatch {
		t.Fatalf("unexpected error body: %+v", resp)
	}
	if rr.Header().Get(HeaderReplayed) != "" {
		t.Fatalf("mismatch marked as replay")
	}
	if n := len(store.Snapshot().Goals); n != 1 {
		t.Fatalf("expected one goal, got %d", n)
	}

	// The original body still replays.
	again := do(t, srv, http.MethodPost, "/api/goals", `{"title":"PS5","targetAmount":500}`, HeaderIdempotencyKey, "k-1")
	if again.Code != http.StatusCreated || again.Body.String() != first.Body.String() {
		t.Fatalf("replay after mismatch failed: %d %s", again.Code, again.Body.String())
	}
}

func TestIdempotentConcurrentRetriesAreReplays(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	h := srv.idempotent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		writeJSON(w, http.StatusCreated, map[string]string{"id": "g-1"})
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/goals", strings.NewReader(`{"title":"PS5"}`))
		req.Header.Set(HeaderIdempotencyKey, "same")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	results := make(chan *httptest.ResponseRecorder, 3)
	go func() { results <- send() }()
	<-entered
	for i := 0; i < 2; i++ {
		go func() { results <- send() }()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	replayed := 0
	for i := 0; i < 3; i++ {
		rr := <-results
		if rr.Code != http.StatusCreated {
			t.Fatalf("status=%d", rr.Code)
		}
		if rr.Header().Get(HeaderReplayed) == "true" {
			replayed++
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
	if replayed != 2 {
		t.Fatalf("expected 2 replayed responses, got %d", replayed)
	}
}

func TestRateLimitPerOperation(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})

	g := createGoal(t, srv, `{"title":"Bike","targetAmount":100}`)
	path := "/api/goals/" + g.Goal.ID
	if rr := do(t, srv, http.MethodPost, path+"/deposits", `{"amount":5}`); rr.Code != http.StatusOK {
		t.Fatalf("deposit status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, path+"/deposits", `{"amount":5}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second deposit status=%d", rr.Code)
	}

	// A spent deposit budget leaves the other operations alone.
	if rr := do(t, srv, http.MethodPost, path+"/lock", ""); rr.Code != http.StatusOK {
		t.Fatalf("lock status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPatch, path, `{"title":"Road bike"}`); rr.Code != http.StatusOK {
		t.Fatalf("update status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/goals", `{"title":"Car","targetAmount":100}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second create status=%d", rr.Code)
	}
}

func TestSecurityHeadersAndGuard(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/goals", "")
	if rr.Header().Get("Cache-Control") != "no-store" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing API headers: %v", rr.Header())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
	if rr := do(t, srv, http.MethodGet, "/api/goals?q="+strings.Repeat("x", 3000), ""); rr.Code != http.StatusRequestURITooLong {
		t.Fatalf("expected 414, got %d", rr.Code)
	}
}
