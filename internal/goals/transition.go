package goals

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"saveup/internal/core"
)

// State is an immutable snapshot of the goal set with its aggregates.
type State struct {
	Goals      []core.Goal
	Aggregates core.Aggregates
}

// Env injects the clock and id source into a transition.
type Env struct {
	Now   time.Time
	NewID func() string
}

// Change reports what a transition committed.
type Change = core.GoalChange

// NewID returns a time-ordered UUIDv7 string, falling back to a random v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewState builds a state over goals with fresh aggregates.
func NewState(goals []core.Goal) State {
	return State{Goals: goals, Aggregates: core.ComputeAggregates(goals)}
}

// Find returns the goal with id and its index, or -1.
func (s State) Find(id string) (core.Goal, int) {
	i := slices.IndexFunc(s.Goals, func(g core.Goal) bool { return g.ID == id })
	if i < 0 {
		return core.Goal{}, -1
	}
	return s.Goals[i], i
}

// Apply runs action against state. It never mutates state: on success the
// returned State shares only untouched goals with the input; on failure
// the input state is returned unchanged together with an *OpError.
func Apply(state State, action Action, env Env) (State, Change, error) {
	if env.NewID == nil {
		env.NewID = NewID
	}
	if env.Now.IsZero() {
		env.Now = time.Now()
	}

	switch a := action.(type) {
	case CreateGoal:
		return applyCreate(state, a, env)
	case UpdateGoal:
		return applyUpdate(state, a, env)
	case DeleteGoal:
		return applyDelete(state, a)
	case AddDeposit:
		return applyDeposit(state, a, env)
	case WithdrawFunds:
		return applyWithdraw(state, a, env)
	case ToggleGoalLock:
		return applyToggleLock(state, a, env)
	case LoadGoals:
		goals := make([]core.Goal, len(a.Goals))
		for i, g := range a.Goals {
			goals[i] = g.Clone()
		}
		return NewState(goals), Change{Kind: core.ChangeLoaded}, nil
	default:
		return state, Change{}, fmt.Errorf("unknown action %T", action)
	}
}

func applyCreate(state State, a CreateGoal, env Env) (State, Change, error) {
	in, err := core.ValidateGoalInput(a.Input, env.Now)
	if err != nil {
		return state, Change{}, validationError("createGoal", "", err)
	}
	g := core.NewGoal(env.NewID(), in, env.Now)

	goals := make([]core.Goal, 0, len(state.Goals)+1)
	goals = append(goals, state.Goals...)
	goals = append(goals, g)
	return NewState(goals), Change{Kind: core.ChangeCreated, GoalID: g.ID}, nil
}

func applyUpdate(state State, a UpdateGoal, env Env) (State, Change, error) {
	g, i := state.Find(a.ID)
	if i < 0 {
		return state, Change{}, opError("updateGoal", a.ID, ErrNotFound, MsgNotFound)
	}
	patch, err := core.ValidateGoalPatch(a.Patch, env.Now)
	if err != nil {
		return state, Change{}, validationError("updateGoal", a.ID, err)
	}

	g = g.Clone()
	patch.Apply(&g)
	g.UpdatedAt = env.Now
	return replaceAt(state, i, g), Change{Kind: core.ChangeUpdated, GoalID: g.ID}, nil
}

func applyDelete(state State, a DeleteGoal) (State, Change, error) {
	_, i := state.Find(a.ID)
	if i < 0 {
		return state, Change{}, nil
	}
	goals := slices.Concat(state.Goals[:i], state.Goals[i+1:])
	return NewState(goals), Change{Kind: core.ChangeDeleted, GoalID: a.ID}, nil
}

func applyDeposit(state State, a AddDeposit, env Env) (State, Change, error) {
	if !a.Amount.IsPositive() {
		return state, Change{}, opError("addDeposit", a.ID, ErrInvalidAmount, MsgDepositAmount)
	}
	g, i := state.Find(a.ID)
	if i < 0 {
		return state, Change{}, opError("addDeposit", a.ID, ErrNotFound, MsgNotFound)
	}
	balance, ok := g.CurrentAmount.AddChecked(a.Amount)
	if !ok || balance.Cents > core.MaxBalance.Cents {
		return state, Change{}, opError("addDeposit", a.ID, ErrInvalidAmount, MsgDepositTooLarge)
	}

	g = g.Clone()
	g.Transactions = append(g.Transactions, newTransaction(env, a.Amount, core.Deposit, a.Description))
	g.CurrentAmount = balance
	reached := recomputeMilestones(&g, env.Now)
	g.UpdatedAt = env.Now

	return replaceAt(state, i, g), Change{Kind: core.ChangeDeposit, GoalID: g.ID, Milestones: reached}, nil
}

// applyWithdraw checks amount, existence, lock and funds in that order.
func applyWithdraw(state State, a WithdrawFunds, env Env) (State, Change, error) {
	if !a.Amount.IsPositive() {
		return state, Change{}, opError("withdrawFunds", a.ID, ErrInvalidAmount, MsgWithdrawalAmount)
	}
	g, i := state.Find(a.ID)
	if i < 0 {
		return state, Change{}, opError("withdrawFunds", a.ID, ErrNotFound, MsgNotFound)
	}
	if g.IsLocked {
		return state, Change{}, opError("withdrawFunds", a.ID, ErrGoalLocked, MsgGoalLocked)
	}
	if a.Amount.Cents > g.CurrentAmount.Cents {
		return state, Change{}, opError("withdrawFunds", a.ID, ErrInsufficientFunds, MsgInsufficientFunds)
	}

	g = g.Clone()
	g.Transactions = append(g.Transactions, newTransaction(env, a.Amount, core.Withdrawal, a.Description))
	g.CurrentAmount = g.CurrentAmount.Sub(a.Amount)
	reached := recomputeMilestones(&g, env.Now)
	g.UpdatedAt = env.Now

	return replaceAt(state, i, g), Change{Kind: core.ChangeWithdrawn, GoalID: g.ID, Milestones: reached}, nil
}

func applyToggleLock(state State, a ToggleGoalLock, env Env) (State, Change, error) {
	g, i := state.Find(a.ID)
	if i < 0 {
		return state, Change{}, opError("toggleGoalLock", a.ID, ErrNotFound, MsgNotFound)
	}
	g = g.Clone()
	g.IsLocked = !g.IsLocked
	g.UpdatedAt = env.Now
	return replaceAt(state, i, g), Change{Kind: core.ChangeLock, GoalID: g.ID}, nil
}

// recomputeMilestones marks every unreached milestone the current progress
// covers. Reached milestones are never unset.
func recomputeMilestones(g *core.Goal, now time.Time) []int {
	var reached []int
	for i := range g.Milestones {
		m := &g.Milestones[i]
		if m.Reached || !core.MilestoneReached(*g, m.Percentage) {
			continue
		}
		at := now
		m.Reached = true
		m.ReachedAt = &at
		reached = append(reached, m.Percentage)
	}
	return reached
}

func newTransaction(env Env, amount core.Money, typ core.TransactionType, desc string) core.Transaction {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		desc = core.DefaultDepositDescription
		if typ == core.Withdrawal {
			desc = core.DefaultWithdrawalDescription
		}
	}
	return core.Transaction{
		ID:          env.NewID(),
		Amount:      amount,
		Type:        typ,
		Description: desc,
		CreatedAt:   env.Now,
	}
}

func replaceAt(state State, i int, g core.Goal) State {
	goals := slices.Clone(state.Goals)
	goals[i] = g
	return NewState(goals)
}
