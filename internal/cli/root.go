// Package cli wires the pipeline components into the qpipe command
// tree: a long-running worker, a one-shot enqueue producer, and schema
// bootstrap.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/qpipe/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Verbose bool
	Debug   bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qpipe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qpipe",
		Short: "qpipe - asynchronous transactional query pipeline",
		Long:  "Run database batches through a message bus: producers publish, workers execute transactionally, results come back through a correlation store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			logrus.SetLevel(logrus.InfoLevel)
			if opts.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			if opts.Debug {
				logrus.SetLevel(logrus.TraceLevel)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file (required)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "trace-level logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewEnqueueCommand(opts))

	return cmd
}

// loadConfig reads the --config file, which every subcommand requires.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config == "" {
		return config.Config{}, &ExitError{Code: ExitCommandError, Message: "--config is required"}
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := applyLogConfig(cfg.Log); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// applyLogConfig points the process logger at the configured level and
// file. The file stays open for the life of the process.
func applyLogConfig(cfg config.Log) error {
	if cfg.Level != "" {
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid log level", err)
		}
		logrus.SetLevel(lvl)
	}
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		logrus.SetOutput(f)
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
