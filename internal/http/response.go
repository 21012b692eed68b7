package http

import (
	"encoding/json"
	"net/http"
	"time"

	"saveup/internal/core"
	"saveup/internal/goals"
	"saveup/internal/log"
)

const (
	kindBadRequest          goals.Kind = "bad_request"
	kindRateLimited         goals.Kind = "rate_limited"
	kindIdempotencyMismatch goals.Kind = "idempotency_mismatch"
)

type errorResponse struct {
	Error  string       `json:"error"`
	Kind   goals.Kind   `json:"kind"`
	Fields []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type goalResponse struct {
	Goal         core.Goal    `json:"goal"`
	Progress     float64      `json:"progress"`
	Balance      core.Money   `json:"balance"`
	Remaining    core.Money   `json:"remaining"`
	DaysLeft     *int         `json:"daysLeft"`
	QuickAmounts []core.Money `json:"quickAmounts"`
}

func newGoalResponse(g core.Goal, now time.Time) goalResponse {
	resp := goalResponse{
		Goal:         g,
		Progress:     core.Progress(g),
		Balance:      g.Balance(),
		Remaining:    core.Remaining(g),
		QuickAmounts: core.QuickAmounts(g),
	}
	if days, ok := core.DaysLeft(g, now); ok {
		resp.DaysLeft = &days
	}
	return resp
}

type summaryResponse struct {
	GoalCount       int        `json:"goalCount"`
	TotalSaved      core.Money `json:"totalSaved"`
	TotalTarget     core.Money `json:"totalTarget"`
	CompletedGoals  int        `json:"completedGoals"`
	OverallProgress float64    `json:"overallProgress"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(kind goals.Kind) int {
	switch kind {
	case goals.KindValidation, goals.KindInvalidAmount, kindIdempotencyMismatch:
		return http.StatusUnprocessableEntity
	case goals.KindNotFound:
		return http.StatusNotFound
	case goals.KindGoalLocked, goals.KindInsufficientFunds:
		return http.StatusConflict
	case kindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a store error. Unknown errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := goals.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Goal operation failed", err, log.ComponentHTTP, op,
			log.NewFields().WithGoal(r.PathValue("id"), ""))
		writeJSON(w, status, errorResponse{Error: "Internal server error", Kind: goals.KindInternal})
		return
	}

	resp := errorResponse{Error: err.Error(), Kind: kind}
	for _, fe := range goals.FieldErrors(err) {
		resp.Fields = append(resp.Fields, fieldError{Field: fe.Field, Message: fe.Message()})
	}
	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kindBadRequest})
}
