package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255

	msgIdempotencyMismatch = "Idempotency-Key was already used with a different request body"
)

// storedResponse is a handler response kept for replay, along with the
// fingerprint of the request body that produced it.
type storedResponse struct {
	fingerprint string
	status      int
	header      http.Header
	body        []byte
}

func (sr storedResponse) writeTo(w http.ResponseWriter, replayed bool) {
	for k, v := range sr.header {
		w.Header()[k] = append([]string(nil), v...)
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
	}
	w.WriteHeader(sr.status)
	_, _ = w.Write(sr.body)
}

// bufferedWriter captures a handler response in memory.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) result(fingerprint string) storedResponse {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	return storedResponse{fingerprint: fingerprint, status: status, header: b.header, body: b.body.Bytes()}
}

// bodyFingerprint hashes the request body and puts it back for the handler.
// Bodies beyond maxBodyBytes are left for the handler to reject.
func bodyFingerprint(r *http.Request) (string, error) {
	if r.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	_ = r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func writeIdempotencyMismatch(w http.ResponseWriter) {
	writeJSON(w, statusFor(kindIdempotencyMismatch),
		errorResponse{Error: msgIdempotencyMismatch, Kind: kindIdempotencyMismatch})
}

// idempotent replays the first response for a POST or PATCH carrying an
// Idempotency-Key. The key is bound to the request body: reusing it with a
// different body is rejected with 422. Concurrent retries wait for the first
// attempt and receive its response as a replay. Server errors are not kept so
// the client can retry them.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" || (r.Method != http.MethodPost && r.Method != http.MethodPatch) {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			writeBadRequest(w, errors.New("Idempotency-Key too long"))
			return
		}
		fingerprint, err := bodyFingerprint(r)
		if err != nil {
			writeBadRequest(w, errors.New("Request body could not be read"))
			return
		}

		cacheKey := r.Method + " " + r.URL.Path + " " + key
		if resp, ok := s.idempotency.Get(cacheKey); ok {
			if resp.fingerprint != fingerprint {
				writeIdempotencyMismatch(w)
				return
			}
			resp.writeTo(w, true)
			return
		}

		executed := false
		v, _, _ := s.inflight.Do(cacheKey, func() (any, error) {
			if resp, ok := s.idempotency.Get(cacheKey); ok {
				return resp, nil
			}
			executed = true
			buf := &bufferedWriter{header: make(http.Header)}
			next.ServeHTTP(buf, r)
			resp := buf.result(fingerprint)
			if resp.status < http.StatusInternalServerError {
				s.idempotency.Set(cacheKey, resp)
			}
			return resp, nil
		})
		resp := v.(storedResponse)
		if resp.fingerprint != fingerprint {
			writeIdempotencyMismatch(w)
			return
		}
		resp.writeTo(w, !executed)
	})
}
