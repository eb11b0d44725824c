package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue, connection and onboarding state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			counts := make(map[model.SyncStatus]int, 3)
			for _, status := range []model.SyncStatus{model.StatusPending, model.StatusSynced, model.StatusError} {
				n, countErr := a.store.CountByStatus(ctx, status)
				if countErr != nil {
					return countErr
				}
				counts[status] = n
			}

			stored, err := a.store.LoadSession(ctx)
			if err != nil {
				return err
			}
			token, err := a.tokenFn(ctx)
			if err != nil {
				a.logger.Debug("Stored token unusable", "error", err)
			}
			state, err := a.store.LoadOnboardingState(ctx)
			if err != nil {
				return err
			}

			var lines []string
			lines = append(lines,
				fmt.Sprintf("Pending  %d", counts[model.StatusPending]),
				fmt.Sprintf("Synced   %d", counts[model.StatusSynced]),
				fmt.Sprintf("Errors   %d", counts[model.StatusError]),
				"",
				"Google   "+connectionLabel(token != "", stored.SheetID),
				"Network  "+onlineLabel(a.online(ctx)),
				"",
				"Accounts   "+confirmedLabel(state.AccountsConfirmed, len(state.Accounts)),
				"Categories "+confirmedLabel(state.CategoriesConfirmed, len(state.Categories.Expense)+len(state.Categories.Income)+len(state.Categories.Transfer)),
			)

			last, err := a.store.GetLastTransaction(ctx)
			switch {
			case errors.Is(err, common.ErrNotFound):
			case err != nil:
				return err
			default:
				lines = append(lines, "", "Last     "+describeRecord(*last))
			}

			fmt.Fprintln(a.out, cli.RenderBox("sheetlog", strings.Join(lines, "\n")))
			return nil
		},
	}
}

func connectionLabel(signedIn bool, sheetID string) string {
	switch {
	case !signedIn:
		return cli.WarningStyle.Render("not connected")
	case sheetID == "":
		return cli.InfoStyle.Render("connected, no sheet yet")
	}
	return cli.SuccessStyle.Render("connected") + " " + cli.SubtleStyle.Render(sheetID)
}

func onlineLabel(online bool) string {
	if online {
		return cli.SuccessStyle.Render("online")
	}
	return cli.WarningStyle.Render("offline")
}

func confirmedLabel(confirmed bool, n int) string {
	if confirmed {
		return cli.SuccessStyle.Render(fmt.Sprintf("confirmed (%d)", n))
	}
	return cli.SubtleStyle.Render(fmt.Sprintf("not confirmed (%d)", n))
}

func describeRecord(r model.TransactionRecord) string {
	parts := []string{r.Date, string(r.Type), cli.FormatAmount(r.Amount, r.Currency, r.Type), r.Category}
	if r.Note != "" {
		parts = append(parts, r.Note)
	}
	return strings.Join(parts, "  ") + "  " + cli.FormatStatus(r.Status)
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			records, err := a.store.ListRecentTransactions(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No entries yet. Add one with sheetlog add."))
				return nil
			}

			fmt.Fprintln(a.out, cli.RenderTable(
				[]string{"Date", "Type", "Amount", "Category", "Account", "Note", "Status"},
				recordRows(records),
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of entries to show")
	return cmd
}

func recordRows(records []model.TransactionRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := cli.FormatStatus(r.Status)
		if r.Status == model.StatusError && r.Error != "" {
			status += " " + cli.SubtleStyle.Render(r.Error)
		}
		rows = append(rows, []string{
			r.Date,
			string(r.Type),
			cli.FormatAmount(r.Amount, r.Currency, r.Type),
			r.Category,
			r.Account,
			r.Note,
			status,
		})
	}
	return rows
}
