package security

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"saveup/internal/log"
)

const maxURLLength = 2048

var (
	// Methods no client of the goal API sends.
	refusedMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}

	// Goal ids are UUIDs, older data may hold other short tokens.
	goalIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Guard refuses requests the goal API never serves and logs ones that look
// like probing: path traversal, control characters, malformed goal ids.
type Guard struct {
	clientIP func(*http.Request) string
	logger   *log.Logger
	flagged  atomic.Int64
	refused  atomic.Int64
}

func NewGuard(clientIP func(*http.Request) string, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Discard()
	}
	return &Guard{clientIP: clientIP, logger: logger.WithComponent(log.ComponentSecurity)}
}

// Inspect returns the reason r looks hostile, or "".
func (g *Guard) Inspect(r *http.Request) string {
	path := r.URL.Path
	if raw := r.URL.RawPath; raw != "" {
		if p, err := url.PathUnescape(raw); err == nil {
			path = p
		}
	}
	switch {
	case strings.Contains(path, "..") || strings.Contains(path, `\`):
		return "path traversal"
	case strings.ContainsFunc(path+r.URL.RawQuery, func(c rune) bool { return c < 0x20 || c == 0x7f }):
		return "control characters"
	}
	if rest, ok := strings.CutPrefix(path, "/api/goals/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		if !goalIDPattern.MatchString(id) {
			return "malformed goal id"
		}
	}
	return ""
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refusedMethods[r.Method] {
			g.refused.Add(1)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if len(r.RequestURI) > maxURLLength {
			g.refused.Add(1)
			http.Error(w, "request URI too long", http.StatusRequestURITooLong)
			return
		}
		if reason := g.Inspect(r); reason != "" {
			g.flagged.Add(1)
			g.logger.WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, g.clientIP(r),
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Counts reports flagged and refused requests since start.
func (g *Guard) Counts() (flagged, refused int64) {
	return g.flagged.Load(), g.refused.Load()
}
