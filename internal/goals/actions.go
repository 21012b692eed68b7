package goals

import "saveup/internal/core"

// Action is one of the mutations the engine knows. The set is closed: the
// marker method is unexported.
type Action interface {
	action()
}

type (
	CreateGoal struct {
		Input core.GoalInput
	}

	UpdateGoal struct {
		ID    string
		Patch core.GoalPatch
	}

	DeleteGoal struct {
		ID string
	}

	AddDeposit struct {
		ID          string
		Amount      core.Money
		Description string
	}

	WithdrawFunds struct {
		ID          string
		Amount      core.Money
		Description string
	}

	ToggleGoalLock struct {
		ID string
	}

	// LoadGoals replaces the whole set with what persistence returned.
	LoadGoals struct {
		Goals []core.Goal
	}
)

func (CreateGoal) action()     {}
func (UpdateGoal) action()     {}
func (DeleteGoal) action()     {}
func (AddDeposit) action()     {}
func (WithdrawFunds) action()  {}
func (ToggleGoalLock) action() {}
func (LoadGoals) action()      {}
