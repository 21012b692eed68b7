package security

import (
	"net/http"
	"strconv"
	"time"
)

// apiHeaders suit a JSON API that renders no documents and whose answers
// reflect live balances.
var apiHeaders = map[string]string{
	"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
	"X-Content-Type-Options":       "nosniff",
	"Referrer-Policy":              "no-referrer",
	"Cross-Origin-Resource-Policy": "same-origin",
	"Cache-Control":                "no-store",
}

// Headers sets the API response headers. Strict-Transport-Security is added
// on TLS connections when hsts is positive.
func Headers(hsts time.Duration) func(http.Handler) http.Handler {
	hstsValue := "max-age=" + strconv.Itoa(int(hsts.Seconds())) + "; includeSubDomains"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if r.TLS != nil && hsts > 0 {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
