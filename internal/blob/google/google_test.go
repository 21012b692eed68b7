package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets emulates the subset of the Sheets v4 REST API the store uses.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sid":
		resp := gsheet.Spreadsheet{SpreadsheetId: "sid"}
		for title := range f.sheets {
			resp.Sheets = append(resp.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.sheets[rq.AddSheet.Properties.Title] = nil
			}
		}
		w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		title := sheetOf(rng)
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
			f.sheets[title] = nil
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			var vr gsheet.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			f.sheets[title] = vr.Values
			w.Write([]byte(`{}`))
		default:
			json.NewEncoder(w).Encode(gsheet.ValueRange{Range: rng, Values: f.sheets[title]})
		}

	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func sheetOf(rng string) string {
	rng = strings.TrimPrefix(rng, "'")
	if i := strings.Index(rng, "'!"); i >= 0 {
		return rng[:i]
	}
	return rng
}

func newTestStore(t *testing.T) (*Store, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheets: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{SpreadsheetID: "sid"},
		goption.WithoutAuthentication(),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s, fake
}

func TestStoreLoadMissingSheet(t *testing.T) {
	s, _ := newTestStore(t)
	_, found, err := s.Load(context.Background(), "saveup-goals")
	if err != nil || found {
		t.Fatalf("expected absent blob, found=%v err=%v", found, err)
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	payload := `[{"id":"a","title":"Vacanza è bella"}]`
	if err := s.Save(ctx, "saveup-goals", []byte(payload)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := fake.sheets["saveup-goals"]; !ok {
		t.Fatalf("sheet not created")
	}

	data, found, err := s.Load(ctx, "saveup-goals")
	if err != nil || !found || string(data) != payload {
		t.Fatalf("unexpected load: data=%q found=%v err=%v", data, found, err)
	}

	// Overwrite with a shorter blob: nothing of the old one may survive.
	if err := s.Save(ctx, "saveup-goals", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	data, _, _ = s.Load(ctx, "saveup-goals")
	if string(data) != "[]" {
		t.Fatalf("stale rows left behind: %q", data)
	}
}

func TestSplitAndJoinChunks(t *testing.T) {
	in := strings.Repeat("ab€", 10) // € is three bytes
	rows := splitChunks([]byte(in), 4)
	for _, r := range rows {
		if len(r[0].(string)) > 4 {
			t.Fatalf("chunk too large: %q", r[0])
		}
		if !strings.HasPrefix(r[0].(string), "a") && !strings.HasPrefix(r[0].(string), "b") && !strings.HasPrefix(r[0].(string), "€") {
			t.Fatalf("chunk split inside a rune: %q", r[0])
		}
	}
	out, ok := joinChunks(rows)
	if !ok || string(out) != in {
		t.Fatalf("join mismatch: %q", out)
	}

	if rows := splitChunks(nil, 4); len(rows) != 1 || rows[0][0] != "" {
		t.Fatalf("empty blob should be one empty row, got %v", rows)
	}
	if _, ok := joinChunks(nil); ok {
		t.Fatalf("empty column should be absent")
	}
}

func TestSheetTitle(t *testing.T) {
	cases := map[string]string{
		"saveup-goals": "saveup-goals",
		"a/b!c":        "a_b_c",
		"   ":          "blob",
	}
	for in, want := range cases {
		if got := SheetTitle(in); got != want {
			t.Errorf("SheetTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing id error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}
