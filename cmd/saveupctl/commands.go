package main

import (
	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/core"
	"saveup/internal/goals"
)

func listCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				return e.printGoals(app.Store.Snapshot().Goals)
			})
		},
	}
}

func showCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one goal with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				g, ok := app.Store.Goal(args[0])
				if !ok {
					return goals.ErrNotFound
				}
				return e.printGoal(g)
			})
		},
	}
}

func createCmd(e *env) *cobra.Command {
	var in core.GoalInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new, locked goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				g, err := app.Store.CreateGoal(cmd.Context(), in)
				if err != nil {
					return err
				}
				return e.printGoal(g)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "goal title")
	f.StringVar(&in.Description, "description", "", "goal description")
	f.StringVar(&in.TargetAmount, "target", "", "target amount, e.g. 499.99")
	f.StringVar(&in.Deadline, "deadline", "", "deadline as YYYY-MM-DD")
	f.StringVar(&in.Category, "category", "", "goal category")
	f.StringVar(&in.Image, "image", "", "image URL")
	return cmd
}

func updateCmd(e *env) *cobra.Command {
	var title, description, target, deadline, category, image string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			changed := func(name, v string) *string {
				if !f.Changed(name) {
					return nil
				}
				return &v
			}
			patch := core.GoalPatch{
				Title:        changed("title", title),
				Description:  changed("description", description),
				TargetAmount: changed("target", target),
				Deadline:     changed("deadline", deadline),
				Category:     changed("category", category),
				Image:        changed("image", image),
			}
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				g, err := app.Store.UpdateGoal(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return e.printGoal(g)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&target, "target", "", "new target amount")
	f.StringVar(&deadline, "deadline", "", "new deadline as YYYY-MM-DD, empty to clear")
	f.StringVar(&category, "category", "", "new category")
	f.StringVar(&image, "image", "", "new image URL")
	return cmd
}

func deleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				return app.Store.DeleteGoal(cmd.Context(), args[0])
			})
		},
	}
}

func moneyCmd(e *env, use, short string) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   use + " <id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// An unparsable amount is passed as zero so the store reports it.
			amount, _ := core.ParseAmount(args[1])
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				apply := app.Store.AddDeposit
				if use == "withdraw" {
					apply = app.Store.WithdrawFunds
				}
				g, err := apply(cmd.Context(), args[0], amount, description)
				if err != nil {
					return err
				}
				return e.printGoal(g)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "transaction note")
	return cmd
}

func lockCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <id>",
		Short: "Toggle a goal's lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				g, err := app.Store.ToggleGoalLock(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return e.printGoal(g)
			})
		},
	}
}

func summaryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals across all goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *cli.App) error {
				return e.printSummary(app.Store.Snapshot())
			})
		},
	}
}
