// Package cli implements the tablectl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	NoColor    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// OpenFunc builds the application for a command run.
type OpenFunc func(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app.App, error)

// Runtime carries the process dependencies of the command tree.
type Runtime struct {
	Out  io.Writer
	Err  io.Writer
	Open OpenFunc
}

// DefaultRuntime writes to the process streams and opens the application
// from configuration.
func DefaultRuntime() Runtime {
	return Runtime{Out: os.Stdout, Err: os.Stderr, Open: OpenFromConfig}
}

// OpenFromConfig loads configuration and wires the application. Logs go to
// logOut so stdout stays clean for results.
func OpenFromConfig(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app.App, error) {
	if opts.ConfigPath != "" {
		if err := os.Setenv("TABLETIME_CONFIG_PATH", opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level := cfg.Log.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return app.New(ctx, cfg, app.Options{Logger: logger})
}

// NewRootCommand creates the root command for tablectl.
func NewRootCommand(rt Runtime) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "tablectl",
		Short:         "tablectl - table occupancy and billing",
		Long:          "Operate venue tables: occupancy, sessions, items, bills and payment identities, with remote, database and local fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}
	cmd.SetOut(rt.Out)
	cmd.SetErr(rt.Err)

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newTablesCommand(rt, opts))
	cmd.AddCommand(newAvailableCommand(rt, opts))
	cmd.AddCommand(newSeedCommand(rt, opts))
	cmd.AddCommand(newStartCommand(rt, opts))
	cmd.AddCommand(newStopCommand(rt, opts))
	cmd.AddCommand(newMoveCommand(rt, opts))
	cmd.AddCommand(newFreeCommand(rt, opts))
	cmd.AddCommand(newItemsCommand(rt, opts))
	cmd.AddCommand(newBillsCommand(rt, opts))
	cmd.AddCommand(newBillCommand(rt, opts))
	cmd.AddCommand(newSessionsCommand(rt, opts))
	cmd.AddCommand(newRateCommand(rt, opts))
	cmd.AddCommand(newResolveCommand(rt, opts))
	cmd.AddCommand(newStatusCommand(rt, opts))
	cmd.AddCommand(newMCPCommand(rt, opts))

	return cmd
}

// withApp opens the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, rt Runtime, opts *RootOptions, fn func(ctx context.Context, a *app.App, out *printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := rt.Open(ctx, opts, rt.Err)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a, newPrinter(opts, rt.Out))
}
