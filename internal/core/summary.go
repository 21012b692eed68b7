package core

import (
	"math"
	"math/big"
	"time"
)

// Aggregates are derived totals over the whole goal set.
type Aggregates struct {
	TotalSaved     Money
	TotalTarget    Money
	CompletedGoals int
}

// ComputeAggregates folds the goal set from scratch.
func ComputeAggregates(goals []Goal) Aggregates {
	var a Aggregates
	for _, g := range goals {
		a.TotalSaved = a.TotalSaved.Add(g.CurrentAmount)
		a.TotalTarget = a.TotalTarget.Add(g.TargetAmount)
		if g.IsCompleted() {
			a.CompletedGoals++
		}
	}
	return a
}

// OverallProgress is TotalSaved / TotalTarget as a percentage, 0 when there
// is no target at all.
func (a Aggregates) OverallProgress() float64 {
	if a.TotalTarget.Cents <= 0 {
		return 0
	}
	return math.Min(float64(a.TotalSaved.Cents)*100/float64(a.TotalTarget.Cents), 100)
}

// Progress returns min(current/target*100, 100).
func Progress(g Goal) float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	return math.Min(float64(g.CurrentAmount.Cents)*100/float64(g.TargetAmount.Cents), 100)
}

// MilestoneReached reports whether the goal's progress is at least pct
// percent. The comparison is exact, so 250/500 is 50%, and cannot overflow
// whatever a stored record holds.
func MilestoneReached(g Goal, pct int) bool {
	if g.TargetAmount.Cents <= 0 {
		return false
	}
	saved := new(big.Int).Mul(big.NewInt(g.CurrentAmount.Cents), big.NewInt(100))
	needed := new(big.Int).Mul(big.NewInt(g.TargetAmount.Cents), big.NewInt(int64(pct)))
	return saved.Cmp(needed) >= 0
}

// Remaining is how much is still missing to reach the target, never negative.
func Remaining(g Goal) Money {
	if g.CurrentAmount.Cents >= g.TargetAmount.Cents {
		return Money{}
	}
	return g.TargetAmount.Sub(g.CurrentAmount)
}

// DaysLeft counts whole days until the deadline, rounding partial days up.
// It is negative once the deadline has passed and false when there is none.
func DaysLeft(g Goal, now time.Time) (int, bool) {
	if g.Deadline == nil {
		return 0, false
	}
	days := math.Ceil(g.Deadline.Sub(now).Hours() / 24)
	return int(days), true
}

// quickAmountPercents are the deposit suggestions offered for a goal.
var quickAmountPercents = []float64{5, 10, 15, 25}

// MaxQuickAmount bounds a single suggested deposit.
var MaxQuickAmount = Money{Cents: 1000 * 100}

// QuickAmounts suggests deposits as fixed fractions of the target, rounded to
// whole units. Suggestions that round to zero or exceed MaxQuickAmount are
// left out.
func QuickAmounts(g Goal) []Money {
	out := make([]Money, 0, len(quickAmountPercents))
	for _, pct := range quickAmountPercents {
		units := math.Round(float64(g.TargetAmount.Cents) * pct / 10000)
		if units <= 0 || units*100 > float64(MaxQuickAmount.Cents) {
			continue
		}
		out = append(out, Money{Cents: int64(units) * 100})
	}
	return out
}
