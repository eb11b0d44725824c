package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/spf13/cobra"
)

func undoCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Remove the most recent entry",
		Long: `Remove the most recent entry.

A pending entry is deleted locally. A synced entry is deleted from the
spreadsheet too. When the sheet cannot be reached a compensating entry with
the negated amount is queued instead, so the totals still balance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			session, err := a.session(ctx, !offline && a.online(ctx))
			if err != nil {
				return err
			}

			result, err := a.undoer().UndoLast(ctx, session)
			if err != nil {
				return err
			}
			a.reportUndo(ctx, session, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact the spreadsheet")
	return cmd
}

// reportUndo caches the resolved tab, prints the outcome and treats a failed
// follow-up sync like any other failed pass.
func (a *app) reportUndo(ctx context.Context, session model.Session, result engine.UndoResult) {
	a.cacheTabID(ctx, session, result.TabID)

	if !result.OK {
		fmt.Fprintln(a.out, cli.FormatInfo(result.Message))
		return
	}
	fmt.Fprintln(a.out, cli.FormatSuccess(result.Message))

	if result.SyncErr != nil {
		fmt.Fprintln(a.out, cli.FormatWarning(userMessage(a.remoteFailure(ctx, result.SyncErr))))
	}
	if result.Pending > 0 {
		fmt.Fprintln(a.out, cli.FormatWarning(cli.Pluralize(result.Pending, "entry", "entries")+" waiting to sync"))
	}
}
