package http

import (
	"context"
	"net/http"
	"time"

	"saveup/internal/core"
	"saveup/internal/goals"
	"saveup/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once goals are loaded and storage answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"goals": "ok", "storage": "ok"}

	view := s.store.Snapshot()
	if view.Loading {
		checks["goals"] = "loading"
		status = http.StatusServiceUnavailable
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	result := "ready"
	if status != http.StatusOK {
		result = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": result, "checks": checks})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	view := s.store.Snapshot()
	writeJSON(w, http.StatusOK, summaryResponse{
		GoalCount:       len(view.Goals),
		TotalSaved:      view.TotalSaved,
		TotalTarget:     view.TotalTarget,
		CompletedGoals:  view.CompletedGoals,
		OverallProgress: view.Progress,
	})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.store.Goal(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: goals.MsgNotFound, Kind: goals.KindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(g, s.now()))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	g, err := s.store.CreateGoal(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.events.LogGoalChanged(r.Context(), log.OpCreate, g.ID, g.Title, 0)
	w.Header().Set("Location", "/api/goals/"+g.ID)
	writeJSON(w, http.StatusCreated, newGoalResponse(g, s.now()))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	g, err := s.store.UpdateGoal(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.events.LogGoalChanged(r.Context(), log.OpUpdate, g.ID, g.Title, 0)
	writeJSON(w, http.StatusOK, newGoalResponse(g, s.now()))
}

// handleDeleteGoal answers 204 whether or not the goal existed.
func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteGoal(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.events.LogGoalChanged(r.Context(), log.OpDelete, id, "", 0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleMoney(w, r, log.OpDeposit, s.store.AddDeposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMoney(w, r, log.OpWithdraw, s.store.WithdrawFunds)
}

func (s *Server) handleMoney(w http.ResponseWriter, r *http.Request, op string,
	apply func(context.Context, string, core.Money, string) (core.Goal, error)) {
	var req moneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	amount := req.amount()
	g, err := apply(r.Context(), r.PathValue("id"), amount, sanitizeInput(req.Description))
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	s.events.LogGoalChanged(r.Context(), op, g.ID, g.Title, amount.Cents)
	writeJSON(w, http.StatusOK, newGoalResponse(g, s.now()))
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.ToggleGoalLock(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpLock, err)
		return
	}
	s.events.LogGoalChanged(r.Context(), log.OpLock, g.ID, g.Title, 0)
	writeJSON(w, http.StatusOK, newGoalResponse(g, s.now()))
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.store.ClearError()
	w.WriteHeader(http.StatusNoContent)
}
