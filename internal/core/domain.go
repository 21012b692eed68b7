package core

import (
	"slices"
	"time"
)

const (
	CategoryGaming         Category = "gaming"
	CategoryTransportation Category = "transportation"
	CategoryFashion        Category = "fashion"
	CategoryElectronics    Category = "electronics"
	CategoryTravel         Category = "travel"
	CategoryEducation      Category = "education"
	CategoryHealth         Category = "health"
	CategoryEntertainment  Category = "entertainment"
	CategoryOther          Category = "other"
)

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
)

const (
	DefaultDepositDescription    = "Manual deposit"
	DefaultWithdrawalDescription = "Manual withdrawal"
)

// MilestonePercentages are the fixed progress checkpoints of every goal.
var MilestonePercentages = []int{25, 50, 75, 100}

type (
	Category        string
	TransactionType string

	// Goal is a savings target with its ledger and milestones.
	Goal struct {
		ID            string
		Title         string
		Description   string
		TargetAmount  Money
		CurrentAmount Money
		Deadline      *time.Time
		Category      Category
		Image         string
		IsLocked      bool
		Transactions  []Transaction
		Milestones    []Milestone
		CreatedAt     time.Time
		UpdatedAt     time.Time

		// Extra holds members of the stored JSON object this version does not know.
		Extra Extra
	}

	// Transaction is an immutable ledger entry; direction is carried by Type.
	Transaction struct {
		ID          string
		Amount      Money
		Type        TransactionType
		Description string
		CreatedAt   time.Time
		Extra       Extra
	}

	Milestone struct {
		Percentage int
		Reached    bool
		ReachedAt  *time.Time
		Extra      Extra
	}
)

// Categories returns the recognized categories in display order.
func Categories() []Category {
	return []Category{
		CategoryGaming,
		CategoryTransportation,
		CategoryFashion,
		CategoryElectronics,
		CategoryTravel,
		CategoryEducation,
		CategoryHealth,
		CategoryEntertainment,
		CategoryOther,
	}
}

// IsValid returns true if the category is one of the fixed set.
func (c Category) IsValid() bool {
	return slices.Contains(Categories(), c)
}

func (t TransactionType) IsValid() bool {
	return t == Deposit || t == Withdrawal
}

// NewMilestones returns the four unreached checkpoints.
func NewMilestones() []Milestone {
	out := make([]Milestone, len(MilestonePercentages))
	for i, p := range MilestonePercentages {
		out[i] = Milestone{Percentage: p}
	}
	return out
}

// NewGoal builds a fresh goal from validated input: zero balance, empty
// ledger, four unreached milestones, locked.
func NewGoal(id string, in ValidGoalInput, now time.Time) Goal {
	return Goal{
		ID:            id,
		Title:         in.Title,
		Description:   in.Description,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: Money{},
		Deadline:      in.Deadline,
		Category:      in.Category,
		Image:         in.Image,
		IsLocked:      true,
		Transactions:  []Transaction{},
		Milestones:    NewMilestones(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so transitions never share slices with a prior state.
func (g Goal) Clone() Goal {
	c := g
	c.Deadline = cloneTime(g.Deadline)
	c.Transactions = make([]Transaction, len(g.Transactions))
	for i, t := range g.Transactions {
		t.Extra = t.Extra.Clone()
		c.Transactions[i] = t
	}
	c.Milestones = make([]Milestone, len(g.Milestones))
	for i, m := range g.Milestones {
		m.ReachedAt = cloneTime(m.ReachedAt)
		m.Extra = m.Extra.Clone()
		c.Milestones[i] = m
	}
	c.Extra = g.Extra.Clone()
	return c
}

// Balance recomputes the balance from the ledger.
func (g Goal) Balance() Money {
	var bal Money
	for _, t := range g.Transactions {
		switch t.Type {
		case Deposit:
			bal = bal.Add(t.Amount)
		case Withdrawal:
			bal = bal.Sub(t.Amount)
		}
	}
	return bal
}

// IsCompleted reports whether the balance reached the target.
func (g Goal) IsCompleted() bool {
	return g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
