package core

// ChangeKind names the committed mutation a GoalChange reports.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "goal.created"
	ChangeUpdated   ChangeKind = "goal.updated"
	ChangeDeleted   ChangeKind = "goal.deleted"
	ChangeDeposit   ChangeKind = "goal.deposit"
	ChangeWithdrawn ChangeKind = "goal.withdrawal"
	ChangeLock      ChangeKind = "goal.lock_toggled"
	ChangeLoaded    ChangeKind = "goals.loaded"
)

// GoalChange describes what a successful transition did. Milestones lists
// the percentages first reached by it.
type GoalChange struct {
	Kind       ChangeKind
	GoalID     string
	Milestones []int
}

// IsZero reports whether nothing was committed.
func (c GoalChange) IsZero() bool { return c.Kind == "" }
