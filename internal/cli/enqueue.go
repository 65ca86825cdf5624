package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/qpipe/internal/bus"
	"github.com/roach88/qpipe/internal/corrstore"
	"github.com/roach88/qpipe/internal/producer"
	"github.com/roach88/qpipe/internal/retry"
	"github.com/roach88/qpipe/internal/wire"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	TransactionID string
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue <statement>...",
		Short: "Publish a batch and wait for its result",
		Long: `Package the given SQL statements into one batch, publish it to the
bus, and poll the correlation store until a worker's result envelope
appears or the deadline passes.

Each argument is a statement, optionally prefixed with a result key:

  qpipe enqueue --config pipeline.yaml \
    "ins=INSERT INTO player (id,stamina) VALUES ('1','5')" \
    "player=SELECT * FROM player WHERE id IN (1)"

Statements without a key prefix aggregate under "result".`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TransactionID, "trans-id", "", "transaction id (defaults to a fresh UUID)")

	return cmd
}

func runEnqueue(opts *EnqueueOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := logrus.StandardLogger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	batch := make(wire.Batch, 0, len(args))
	for _, arg := range args {
		key, text := splitStatement(arg)
		batch = append(batch, wire.Statement{Text: text, ResultKey: key})
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

	enq := producer.New(cfg.ServerID, b, store, log)
	enq.Poll = retry.Policy{
		InitialWait: cfg.Poll.InitialWait.Std(),
		Multiplier:  cfg.Poll.Multiplier,
		MaxWait:     cfg.Poll.MaxWait.Std(),
		Deadline:    cfg.Poll.Deadline.Std(),
	}
	enq.SlowThreshold = cfg.Slow.Threshold.Std()
	if cfg.Slow.LogPath != "" {
		sink, err := producer.NewFileSink(cfg.Slow.LogPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open slow-call log", err)
		}
		defer sink.Close()
		enq.Slow = sink
	}

	transID := opts.TransactionID
	if transID == "" {
		transID = producer.NewTransactionID()
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	res, err := enq.EnqueueAndWait(ctx, transID, batch)
	if err != nil {
		if errors.Is(err, producer.ErrLookupTimeout) {
			out.Error(err.Error())
			return WrapExitError(ExitFailure, "no result within the deadline", err)
		}
		return WrapExitError(ExitCommandError, "enqueue failed", err)
	}
	if opts.Format == "json" {
		return out.Success(res)
	}
	return out.Success(formatResult(res))
}

// formatResult renders an envelope for human eyes: the affected total,
// the row count per result key, and the timers in name order.
func formatResult(res *wire.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "affected: %d\n", res.Affected)

	keys := make([]string, 0, len(res.Rows))
	for k := range res.Rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %d rows\n", k, len(res.Rows[k]))
		for _, row := range res.Rows[k] {
			fmt.Fprintf(&sb, "  %v\n", row)
		}
	}

	names := make([]string, 0, len(res.Timers))
	for name := range res.Timers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "%06.3f - %s\n", res.Timers[name], name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// splitStatement separates an optional "key=" prefix from a statement.
// The prefix counts only when it is a bare word, so '=' inside the SQL
// text never splits.
func splitStatement(arg string) (key, text string) {
	if idx := strings.Index(arg, "="); idx > 0 && !strings.ContainsAny(arg[:idx], " \t") {
		return arg[:idx], arg[idx+1:]
	}
	return "result", arg
}
