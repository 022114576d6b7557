package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/table"
)

func newTablesCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [label]",
		Short: "Show all tables, or one table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				if len(args) == 1 {
					rec, source, err := a.Tables.Get(ctx, args[0])
					if err != nil {
						return err
					}
					return out.tables(table.Snapshot{Tables: []table.TableStatus{*rec}, Source: source})
				}
				snap, err := a.Tables.GetAll(ctx)
				if err != nil {
					return err
				}
				return out.tables(snap)
			})
		},
	}
}

func newAvailableCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List free tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				labels, source, err := a.Tables.GetAvailableLabels(ctx)
				if err != nil {
					return err
				}
				return out.labels(labels, source)
			})
		},
	}
}

func newSeedCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "seed <label>...",
		Short: "Add tables that do not exist yet",
		Long:  "Add free tables for the given labels. Existing tables are left untouched.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := make([]table.TableStatus, 0, len(args))
			for _, label := range args {
				recs = append(recs, table.TableStatus{Label: label, Type: kind})
			}
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				source, err := a.Tables.Seed(ctx, recs)
				if err != nil {
					return err
				}
				return out.message("seeded %s (source: %s)", strings.Join(args, ", "), source)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "pool", "table type")
	return cmd
}
