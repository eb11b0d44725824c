package main

import (
	"fmt"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Append pending entries to the spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !a.online(ctx) {
				fmt.Fprintln(a.out, cli.FormatWarning("Offline; entries stay queued"))
				return a.reportPending(ctx)
			}

			session, err := a.session(ctx, true)
			if err != nil {
				return err
			}
			if session.AccessToken == "" {
				return common.NewUserError("Not connected to Google. Run sheetlog auth first.", common.ErrNotSignedIn)
			}

			var opts []engine.SyncerOption
			progress := cli.NewSyncProgress(cmd.ErrOrStderr())
			if !noProgress {
				opts = append(opts, engine.WithProgress(progress.Report))
			}
			defer progress.Finish()

			session, err = a.ensureSheet(ctx, session)
			if err != nil {
				return err
			}

			result, err := a.syncer(opts...).SyncPending(ctx, session.AccessToken, session.SheetID)
			progress.Finish()
			if err != nil {
				return a.remoteFailure(ctx, err)
			}
			if result.Synced == 0 && result.Failed == 0 && !result.Skipped {
				fmt.Fprintln(a.out, cli.FormatSuccess("Nothing to sync"))
				return nil
			}
			return a.reportSync(ctx, result)
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}
