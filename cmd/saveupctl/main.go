package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/log"
)

// opener returns a loaded app; withApp closes it.
type opener func(ctx context.Context) (*cli.App, error)

type env struct {
	open opener
	out  io.Writer
	json bool
}

func main() {
	cli.LoadEnvFile()

	e := &env{open: openFromEnv, out: os.Stdout}
	if err := newRootCmd(e).Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*cli.App, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger, _, err := cli.SetupLogger(cfg, os.Stderr, log.ComponentCLI)
	if err != nil {
		return nil, err
	}
	return cli.Open(ctx, cfg, logger, cli.OpenOptions{})
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "saveupctl",
		Short:         "Manage savings goals from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(e.out)
	root.PersistentFlags().BoolVar(&e.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		listCmd(e),
		showCmd(e),
		createCmd(e),
		updateCmd(e),
		deleteCmd(e),
		moneyCmd(e, "deposit", "Add money to a goal"),
		moneyCmd(e, "withdraw", "Take money out of an unlocked goal"),
		lockCmd(e),
		summaryCmd(e),
	)
	return root
}

// withApp opens the store, runs fn and flushes on the way out. A failed
// load aborts before fn so nothing is written over unreadable data.
func (e *env) withApp(ctx context.Context, fn func(*cli.App) error) (err error) {
	app, openErr := e.open(ctx)
	if app == nil {
		return openErr
	}
	defer func() {
		if cerr := app.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if openErr != nil {
		return fmt.Errorf("load goals: %w", openErr)
	}
	return fn(app)
}
