package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"saveup/internal/core"
	"saveup/internal/goals"
)

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) printGoals(list []core.Goal) error {
	if e.json {
		return e.writeJSON(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(e.out, "No goals yet.")
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSAVED\tTARGET\tPROGRESS\tLOCKED")
	for _, g := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.0f%%\t%t\n",
			g.ID, g.Title, g.Category, g.CurrentAmount, g.TargetAmount, core.Progress(g), g.IsLocked)
	}
	return tw.Flush()
}

func (e *env) printGoal(g core.Goal) error {
	if e.json {
		return e.writeJSON(g)
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", g.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", g.Title)
	if g.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", g.Description)
	}
	fmt.Fprintf(tw, "Category:\t%s\n", g.Category)
	fmt.Fprintf(tw, "Saved:\t%s of %s (%.1f%%)\n", g.CurrentAmount, g.TargetAmount, core.Progress(g))
	fmt.Fprintf(tw, "Remaining:\t%s\n", core.Remaining(g))
	if days, ok := core.DaysLeft(g, time.Now()); ok {
		fmt.Fprintf(tw, "Deadline:\t%s (%s)\n", g.Deadline.Format("2006-01-02"), daysLeftLabel(days))
	}
	if quick := core.QuickAmounts(g); len(quick) > 0 {
		labels := make([]string, len(quick))
		for i, m := range quick {
			labels[i] = m.String()
		}
		fmt.Fprintf(tw, "Quick deposits:\t%s\n", strings.Join(labels, ", "))
	}
	fmt.Fprintf(tw, "Locked:\t%t\n", g.IsLocked)
	for _, m := range g.Milestones {
		mark := " "
		if m.Reached {
			mark = "x"
		}
		fmt.Fprintf(tw, "Milestone %d%%:\t[%s]\n", m.Percentage, mark)
	}
	for _, tx := range g.Transactions {
		fmt.Fprintf(tw, "%s\t%s %s  %s\n", tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type, tx.Amount, tx.Description)
	}
	return tw.Flush()
}

func daysLeftLabel(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

func (e *env) printSummary(v goals.View) error {
	if e.json {
		return e.writeJSON(map[string]any{
			"goalCount":       len(v.Goals),
			"totalSaved":      v.TotalSaved,
			"totalTarget":     v.TotalTarget,
			"completedGoals":  v.CompletedGoals,
			"overallProgress": v.Progress,
		})
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Goals:\t%d\n", len(v.Goals))
	fmt.Fprintf(tw, "Completed:\t%d\n", v.CompletedGoals)
	fmt.Fprintf(tw, "Saved:\t%s of %s (%.1f%%)\n", v.TotalSaved, v.TotalTarget, v.Progress)
	return tw.Flush()
}
