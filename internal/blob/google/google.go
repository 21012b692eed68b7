package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saveup/internal/blob"
)

// chunkSize keeps each cell under the 50,000 character limit of Sheets.
const chunkSize = 40000

var unsafeTitle = regexp.MustCompile(`[^A-Za-z0-9 _-]`)

// Store writes each blob into column A of a sheet named after the key,
// one chunk per row.
type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ blob.Store = (*Store)(nil)

// Config selects the spreadsheet and the service account credentials.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Store, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	if len(opts) == 0 {
		credentialsJSON, err := readCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Store{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func readCredentials(cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and timeouts suited to the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// SheetTitle maps a blob key to the sheet holding it.
func SheetTitle(key string) string {
	title := strings.TrimSpace(unsafeTitle.ReplaceAllString(key, "_"))
	if title == "" {
		title = "blob"
	}
	return title
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if s.svc == nil {
		return nil, false, errors.New("sheets service not initialized")
	}
	title := SheetTitle(key)
	exists, err := s.sheetExists(ctx, title)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	rng := fmt.Sprintf("'%s'!A:A", title)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", rng, err)
	}
	data, ok := joinChunks(resp.Values)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := SheetTitle(key)
	if err := s.ensureSheet(ctx, title); err != nil {
		return err
	}

	rng := fmt.Sprintf("'%s'!A:A", title)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: splitChunks(data, chunkSize)}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, fmt.Sprintf("'%s'!A1", title), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// Ping reads the spreadsheet metadata.
func (s *Store) Ping(ctx context.Context) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}

func (s *Store) sheetExists(ctx context.Context, title string) (bool, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return false, fmt.Errorf("spreadsheet %s not found: %w", s.spreadsheetID, err)
		}
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ensureSheet(ctx context.Context, title string) error {
	exists, err := s.sheetExists(ctx, title)
	if err != nil || exists {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

// splitChunks cuts data into rows of at most size bytes, never splitting a
// UTF-8 sequence.
func splitChunks(data []byte, size int) [][]any {
	s := string(data)
	rows := make([][]any, 0, len(s)/size+1)
	for len(s) > size {
		cut := size
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		rows = append(rows, []any{s[:cut]})
		s = s[cut:]
	}
	rows = append(rows, []any{s})
	return rows
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// joinChunks concatenates column A back into the blob. An empty column
// means nothing was ever written.
func joinChunks(values [][]any) ([]byte, bool) {
	if len(values) == 0 {
		return nil, false
	}
	var sb strings.Builder
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprint(row[0]))
	}
	return []byte(sb.String()), true
}
