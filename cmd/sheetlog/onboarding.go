package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/spf13/cobra"
)

// applyOnboarding persists an update and pushes it when the session allows.
// A push failure is reported but the local change stands.
func (a *app) applyOnboarding(ctx context.Context, offline bool, update model.OnboardingUpdate) (model.OnboardingState, error) {
	current, err := a.store.LoadOnboardingState(ctx)
	if err != nil {
		return current, err
	}

	session, err := a.session(ctx, !offline && a.online(ctx))
	if err != nil {
		return current, err
	}
	session, err = a.ensureSheet(ctx, session)
	if err != nil {
		a.logger.Warn("Could not link a spreadsheet", "error", err)
	}

	next, err := a.onboarding().ApplyUpdate(ctx, engine.UpdateParams{
		Current: current,
		Updates: update,
		Session: session,
	})
	if errors.Is(err, engine.ErrPushFailed) {
		fmt.Fprintln(a.out, cli.FormatWarning("Saved locally. "+userMessage(a.remoteFailure(ctx, err))))
		return next, nil
	}
	if err != nil {
		return next, err
	}
	return next, nil
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Show or set the accounts offered when adding entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			state, err := a.store.LoadOnboardingState(ctx)
			if err != nil {
				return err
			}
			printList(a, "Accounts", state.Accounts, state.AccountsConfirmed)
			return nil
		},
	}

	var offline bool
	set := &cobra.Command{
		Use:   "set ACCOUNT[,ACCOUNT...]",
		Short: "Replace and confirm the account list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			accounts := model.NormalizeStringList(splitArgs(args))
			if len(accounts) == 0 {
				return common.NewUserError("Give at least one account name.", nil)
			}
			confirmed := true
			state, err := a.applyOnboarding(ctx, offline, model.OnboardingUpdate{
				Accounts:          &accounts,
				AccountsConfirmed: &confirmed,
			})
			if err != nil {
				return err
			}
			printList(a, "Accounts", state.Accounts, state.AccountsConfirmed)
			return nil
		},
	}
	set.Flags().BoolVar(&offline, "offline", false, "do not push to the spreadsheet")
	cmd.AddCommand(set)
	return cmd
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Show or set the categories for each entry type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			state, err := a.store.LoadOnboardingState(ctx)
			if err != nil {
				return err
			}
			printCategories(a, state)
			return nil
		},
	}

	var (
		offline bool
		confirm bool
	)
	set := &cobra.Command{
		Use:   "set TYPE CATEGORY[,CATEGORY...]",
		Short: "Replace the categories of one type",
		Long: `Replace the categories of one type. The list is pushed to the spreadsheet
once all three types have categories and --confirm is given.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			txType, err := model.ParseTransactionType(args[0])
			if err != nil {
				return err
			}
			values := model.NormalizeStringList(splitArgs(args[1:]))

			current, err := a.store.LoadOnboardingState(ctx)
			if err != nil {
				return err
			}
			categories := current.Categories.WithType(txType, values)
			update := model.OnboardingUpdate{Categories: &categories}
			if confirm {
				update.CategoriesConfirmed = &confirm
			}

			state, err := a.applyOnboarding(ctx, offline, update)
			if err != nil {
				return err
			}
			printCategories(a, state)
			return nil
		},
	}
	set.Flags().BoolVar(&offline, "offline", false, "do not push to the spreadsheet")
	set.Flags().BoolVar(&confirm, "confirm", false, "mark categories as confirmed")
	cmd.AddCommand(set)
	return cmd
}

func onboardingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Walk through accounts, categories and the sheet folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			update, err := runWizard(ctx, cli.NewCLIPrompter(cmd.InOrStdin(), a.out), a.store)
			if err != nil {
				return err
			}
			state, err := a.applyOnboarding(ctx, false, update)
			if err != nil {
				return err
			}
			printList(a, "Accounts", state.Accounts, state.AccountsConfirmed)
			printCategories(a, state)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Load accounts and categories stored in the spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			session, err := a.session(ctx, a.online(ctx))
			if err != nil {
				return err
			}
			if !session.Authenticated() {
				return common.NewUserError("Not connected to Google. Run sheetlog auth first.", common.ErrNotSignedIn)
			}
			if err := hydrate(cmd, a, session); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Onboarding is up to date"))
			return nil
		},
	})

	var offline bool
	folder := &cobra.Command{
		Use:   "folder FOLDER_ID",
		Short: "Set the Drive folder new spreadsheets are created in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			folderID := strings.TrimSpace(args[0])
			if _, err := a.applyOnboarding(ctx, offline, model.OnboardingUpdate{SheetFolderID: &folderID}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Sheet folder set to "+folderID))
			return nil
		},
	}
	folder.Flags().BoolVar(&offline, "offline", true, "do not contact the spreadsheet")
	cmd.AddCommand(folder)

	return cmd
}

type onboardingStore interface {
	LoadOnboardingState(ctx context.Context) (model.OnboardingState, error)
}

// runWizard asks for accounts and the three category lists and returns the
// update confirming both sections.
func runWizard(ctx context.Context, prompter *cli.Prompter, store onboardingStore) (model.OnboardingUpdate, error) {
	current, err := store.LoadOnboardingState(ctx)
	if err != nil {
		return model.OnboardingUpdate{}, err
	}

	accounts, err := prompter.PromptList(ctx, "Accounts (comma separated)", current.Accounts)
	if err != nil {
		return model.OnboardingUpdate{}, err
	}

	categories := current.Categories.Clone()
	for _, txType := range model.TransactionTypes {
		values, promptErr := prompter.PromptList(ctx, fmt.Sprintf("Categories for %s", txType), current.Categories.ForType(txType))
		if promptErr != nil {
			return model.OnboardingUpdate{}, promptErr
		}
		categories = categories.WithType(txType, values)
	}

	save, err := prompter.Confirm(ctx, "Save and sync these lists?", true)
	if err != nil {
		return model.OnboardingUpdate{}, err
	}
	if !save {
		return model.OnboardingUpdate{}, common.NewUserError("Onboarding canceled; nothing changed.", nil)
	}

	confirmed := true
	return model.OnboardingUpdate{
		Accounts:            &accounts,
		AccountsConfirmed:   &confirmed,
		Categories:          &categories,
		CategoriesConfirmed: &confirmed,
	}, nil
}

// splitArgs accepts both "a b" and "a,b".
func splitArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		out = append(out, strings.Split(arg, ",")...)
	}
	return out
}

func printList(a *app, title string, values []string, confirmed bool) {
	fmt.Fprintln(a.out, cli.FormatTitle(title+" "+confirmedLabel(confirmed, len(values))))
	for _, value := range values {
		fmt.Fprintf(a.out, "  • %s\n", value)
	}
}

func printCategories(a *app, state model.OnboardingState) {
	fmt.Fprintln(a.out, cli.FormatTitle("Categories "+confirmedLabel(state.CategoriesConfirmed, len(state.Categories.Expense)+len(state.Categories.Income)+len(state.Categories.Transfer))))
	for _, txType := range model.TransactionTypes {
		fmt.Fprintf(a.out, "  %s: %s\n", cli.BoldStyle.Render(string(txType)), strings.Join(state.Categories.ForType(txType), ", "))
	}
}
