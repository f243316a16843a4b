package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jward/xref"
	"github.com/jward/xref/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagOut     string
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg and logger are set up by the root command before any subcommand runs.
var (
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "xref",
	Short:         "Static cross-reference index builder",
	Long:          "xref finalizes, verifies and queries a file-backed cross-reference index written by producers.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		logger = newLogger(flagVerbose)
		c, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOut, "out", "out", "index output directory")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.FileName, "configuration file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug events to stderr")

	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(queryCmd)
}

// newLogger returns a text logger on stderr. Without --verbose only
// warnings and errors are shown.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var flagParallelism int

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Build the master index, redirect tables and reference pages",
	Long:  "Runs the finalization pass over an output directory written by Generate: master index, redirect tables, reference pages, backpatching and the build manifest.",
	Args:  cobra.NoArgs,
	RunE:  runFinalize,
}

func init() {
	finalizeCmd.Flags().IntVarP(&flagParallelism, "parallelism", "j", 0, "worker pool size (default: from config)")
}

func runFinalize(cmd *cobra.Command, args []string) error {
	start := time.Now()
	opts := []xref.Option{xref.WithConfig(cfg), xref.WithLogger(logger)}
	if cmd.Flags().Changed("parallelism") {
		opts = append(opts, xref.WithParallelism(flagParallelism))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := xref.FinalizeDir(ctx, flagOut, opts...)
	if stats == nil {
		return outputError("finalize", err)
	}
	fmt.Fprintf(os.Stderr, "Finalized %s in %s\n", flagOut, time.Since(start).Round(time.Millisecond))
	if outErr := outputResult(CLIResult{Command: "finalize", Results: statsToCLI(stats)}); outErr != nil {
		return outErr
	}
	if err != nil {
		errorHandled = true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return err
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}
