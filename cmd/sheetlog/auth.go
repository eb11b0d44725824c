package main

import (
	"fmt"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/sheets"
	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	var callbackAddr string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Connect sheetlog to your Google account",
		Long: `Sign in with Google, then find or create the ledger spreadsheet and pull
any accounts and categories already stored in it.

Requires sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID
and GOOGLE_SHEETS_CLIENT_SECRET).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			oauthConfig, err := a.sheetsConfig.OAuth2()
			if err != nil {
				return err
			}
			oauthConfig.CallbackAddr = callbackAddr

			token, err := sheets.AuthenticateOAuth2Interactive(ctx, oauthConfig)
			if err != nil {
				return fmt.Errorf("google sign-in failed: %w", err)
			}

			stored, err := a.store.LoadSession(ctx)
			if err != nil {
				return err
			}
			session, err := a.ensureSheet(ctx, model.Session{
				AccessToken: token.AccessToken,
				SheetID:     stored.SheetID,
				TabID:       stored.TabID,
				Online:      true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Connected to Google Sheets"))
			fmt.Fprintln(a.out, cli.SubtleStyle.Render("Spreadsheet: https://docs.google.com/spreadsheets/d/"+session.SheetID))

			return hydrate(cmd, a, session)
		},
	}

	cmd.Flags().StringVar(&callbackAddr, "callback-addr", sheets.DefaultCallbackAddr, "address of the local OAuth callback server")
	cmd.AddCommand(logoutCmd())
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget Google credentials; local entries are kept",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.signOut(ctx); err != nil {
				return err
			}

			pending, err := a.store.CountPending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Disconnected from Google"))
			if pending > 0 {
				fmt.Fprintln(a.out, cli.FormatInfo(cli.Pluralize(pending, "entry", "entries")+" will sync after you reconnect"))
			}
			return nil
		},
	}
}

// hydrate pulls the sheet's config block into unconfirmed onboarding sections.
func hydrate(cmd *cobra.Command, a *app, session model.Session) error {
	ctx := cmd.Context()
	current, err := a.store.LoadOnboardingState(ctx)
	if err != nil {
		return err
	}

	result, err := a.onboarding().HydrateFromRemote(ctx, session.AccessToken, session.SheetID, current)
	if err != nil {
		return a.remoteFailure(ctx, err)
	}
	if result.AccountsChanged {
		fmt.Fprintln(a.out, cli.FormatInfo("Loaded accounts from the sheet"))
	}
	if result.CategoriesChanged {
		fmt.Fprintln(a.out, cli.FormatInfo("Loaded categories from the sheet"))
	}
	return nil
}
