package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/qpipe/internal/bus"
	"github.com/roach88/qpipe/internal/corrstore"
	"github.com/roach88/qpipe/internal/db"
	"github.com/roach88/qpipe/internal/sqlgen"
	"github.com/roach88/qpipe/internal/worker"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	ID string
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a batch-executing worker",
		Long: `Run one worker loop: pull a message from the bus, execute its batch
in a single transaction, publish the result envelope to the correlation
store, repeat until interrupted.

Workers scale horizontally; start more processes against the same
subscription to raise throughput.

Example:
  qpipe worker --config pipeline.yaml
  qpipe worker --config pipeline.yaml --id worker-2 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "worker id used in logs (defaults to the hostname)")

	return cmd
}

func runWorker(opts *WorkerOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := logrus.StandardLogger()

	id := opts.ID
	if id == "" {
		id, _ = os.Hostname()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	pool, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer pool.Close()
	if err := db.InitTables(ctx, pool, &sqlgen.Builder{Strict: cfg.Builder.Strict, Log: log}); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize tables", err)
	}

	b, err := bus.NewPubSub(ctx, cfg.Bus.Project, cfg.Bus.Topic, cfg.Bus.Subscription)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to bus", err)
	}
	defer b.Close()

	store, err := corrstore.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to correlation store", err)
	}
	defer store.Close()

	exec := &worker.Executor{
		DB:        pool,
		Isolation: sql.LevelReadUncommitted,
		Atomic:    cfg.Worker.Atomic,
		Log:       log,
	}
	w := worker.New(id, b, store, exec, worker.Config{
		StaleAfter: cfg.Worker.StaleAfter.Std(),
		ResultTTL:  cfg.Worker.ResultTTL.Std(),
		WarnEvery:  cfg.Worker.WarnEvery.Std(),
	}, log)

	fmt.Fprintln(cmd.OutOrStdout(), "Worker started. Press Ctrl-C to stop.")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "worker error", err)
	}
	return nil
}
