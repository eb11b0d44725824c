package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/connectivity"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync automatically whenever the network comes back",
		Long: `Poll connectivity and, each time the machine goes from offline to online,
drain the pending queue and refresh accounts and categories from the sheet.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if interval <= 0 {
				interval = a.connectivity.Interval
			}

			handler := cli.NewInterruptHandler(a.out, "Watch stopped", "Queued entries sync on the next run")
			ctx, stop := handler.HandleInterrupts(cmd.Context())
			defer stop()

			syncer := a.syncer()
			monitor := connectivity.NewMonitor(a.probe, interval, a.logger, func(ctx context.Context) {
				a.onReconnect(ctx, syncer)
			})

			fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("Watching connectivity every %s (Ctrl+C to stop)", interval)))
			if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "probe interval (default connectivity.interval)")
	return cmd
}

// onReconnect runs one sync pass and one onboarding refresh. Failures are
// printed and the watch keeps going.
func (a *app) onReconnect(ctx context.Context, syncer *engine.Syncer) {
	session, err := a.session(ctx, true)
	if err != nil {
		a.logger.Error("Failed to load session", "error", err)
		return
	}
	if session.AccessToken == "" {
		fmt.Fprintln(a.out, cli.FormatWarning("Online but not connected to Google; run sheetlog auth"))
		return
	}
	session, err = a.ensureSheet(ctx, session)
	if err != nil {
		fmt.Fprintln(a.out, cli.FormatError(err.Error()))
		return
	}

	result, err := syncer.SyncPending(ctx, session.AccessToken, session.SheetID)
	if err != nil {
		fmt.Fprintln(a.out, cli.FormatError(userMessage(a.remoteFailure(ctx, err))))
		return
	}
	if err := a.reportSync(ctx, result); err != nil {
		a.logger.Warn("Failed to report sync", "error", err)
	}

	current, err := a.store.LoadOnboardingState(ctx)
	if err != nil {
		a.logger.Warn("Failed to load onboarding state", "error", err)
		return
	}
	if _, err := a.onboarding().HydrateFromRemote(ctx, session.AccessToken, session.SheetID, current); err != nil {
		fmt.Fprintln(a.out, cli.FormatWarning(userMessage(a.remoteFailure(ctx, err))))
	}
}
