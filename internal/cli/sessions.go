package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/session"
)

func newStartCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	var req session.StartRequest
	cmd := &cobra.Command{
		Use:   "start <label>",
		Short: "Start a session on a free table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Label = args[0]
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				res, err := a.Sessions.Start(ctx, req)
				if err != nil {
					return err
				}
				return out.started(res)
			})
		},
	}
	cmd.Flags().StringVar(&req.ServerID, "server", "", "id of the staff member serving the table")
	cmd.Flags().StringVar(&req.ServerName, "server-name", "", "display name of the staff member")
	return cmd
}

func newStopCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <label>",
		Short: "Stop the session on a table and print its bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				res, err := a.Sessions.Stop(ctx, args[0])
				if err != nil {
					return err
				}
				return out.stopped(res)
			})
		},
	}
}

func newMoveCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a running session to a free table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				res, err := a.Sessions.Move(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return out.moved(res)
			})
		},
	}
}

func newFreeCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "free <label>",
		Short: "Free a table without producing a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				res, err := a.Sessions.ForceFree(ctx, args[0])
				if err != nil {
					return err
				}
				return out.stopped(res)
			})
		},
	}
}
