package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/qpipe/internal/bus"
	"github.com/roach88/qpipe/internal/db"
	"github.com/roach88/qpipe/internal/schema"
	"github.com/roach88/qpipe/internal/sqlgen"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the database schema and bus resources",
		Long: `Create the database, its tables, and the Pub/Sub topic and
subscription if they do not exist. Safe to run repeatedly.

Example:
  qpipe init --config pipeline.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(rootOpts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	log := logrus.StandardLogger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer pool.Close()

	if err := db.InitTables(ctx, pool, &sqlgen.Builder{Strict: cfg.Builder.Strict, Log: log}); err != nil {
		return WrapExitError(ExitCommandError, "failed to create tables", err)
	}

	b, err := bus.NewPubSub(ctx, cfg.Bus.Project, cfg.Bus.Topic, cfg.Bus.Subscription)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to bus", err)
	}
	defer b.Close()
	if err := b.Bootstrap(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to create topic and subscription", err)
	}

	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	var names []string
	for _, t := range schema.Tables() {
		names = append(names, t.Name)
	}
	return out.Success(fmt.Sprintf("initialized database %q (tables: %v), topic %q, subscription %q",
		cfg.Database.Name, names, cfg.Bus.Topic, cfg.Bus.Subscription))
}
