package http

import (
	"net/http"
	"strings"

	"saveup/internal/log"
)

// route is the goal operation a request asks for. It is worked out from the
// method and path before the mux runs, so middleware can log it and rate
// limit per operation.
type route struct {
	op       string
	goalID   string
	mutating bool
}

func routeOf(r *http.Request) route {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/api/goals":
		switch r.Method {
		case http.MethodGet:
			return route{op: log.OpList}
		case http.MethodPost:
			return route{op: log.OpCreate, mutating: true}
		}
		return route{}
	case "/api/summary":
		return route{op: log.OpSummary}
	case "/api/error":
		if r.Method == http.MethodDelete {
			return route{op: log.OpClearError, mutating: true}
		}
		return route{}
	}

	rest, ok := strings.CutPrefix(path, "/api/goals/")
	if !ok || rest == "" {
		return route{}
	}
	id, action, _ := strings.Cut(rest, "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		return route{op: log.OpRead, goalID: id}
	case action == "" && r.Method == http.MethodPatch:
		return route{op: log.OpUpdate, goalID: id, mutating: true}
	case action == "" && r.Method == http.MethodDelete:
		return route{op: log.OpDelete, goalID: id, mutating: true}
	case action == "deposits" && r.Method == http.MethodPost:
		return route{op: log.OpDeposit, goalID: id, mutating: true}
	case action == "withdrawals" && r.Method == http.MethodPost:
		return route{op: log.OpWithdraw, goalID: id, mutating: true}
	case action == "lock" && r.Method == http.MethodPost:
		return route{op: log.OpLock, goalID: id, mutating: true}
	}
	return route{goalID: id}
}
