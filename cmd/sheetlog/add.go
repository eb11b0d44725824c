package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type entryFlags struct {
	txType   string
	amount   string
	currency string
	account  string
	forWhom  string
	category string
	date     string
	note     string
	tags     []string
}

// buildInput validates flag values into a TransactionInput. An empty date
// means now in the local zone.
func buildInput(f entryFlags, now time.Time) (model.TransactionInput, error) {
	txType, err := model.ParseTransactionType(f.txType)
	if err != nil {
		return model.TransactionInput{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(f.amount))
	if err != nil {
		return model.TransactionInput{}, fmt.Errorf("%w: %q", model.ErrInvalidAmount, f.amount)
	}

	date := strings.TrimSpace(f.date)
	if date == "" {
		date = now.Format(model.LocalDateLayout)
	}

	input := model.TransactionInput{
		Type:     txType,
		Amount:   amount,
		Currency: strings.ToUpper(strings.TrimSpace(f.currency)),
		Account:  strings.TrimSpace(f.account),
		For:      strings.TrimSpace(f.forWhom),
		Category: strings.TrimSpace(f.category),
		Date:     date,
		Note:     strings.TrimSpace(f.note),
		Tags:     model.NormalizeStringList(f.tags),
	}
	if err := input.Validate(); err != nil {
		return model.TransactionInput{}, err
	}
	return input, nil
}

func addCmd() *cobra.Command {
	var (
		flags   entryFlags
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense, income or transfer",
		Long: `Record an entry in the local ledger and sync it when online.

Examples:
  sheetlog add --amount 12.50 --category Food --note lunch
  sheetlog add --type income --amount 2500 --category Salary --account Checking
  sheetlog add --type transfer --amount 200 --category Savings --date 2024-03-01T09:00`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if flags.category == "" {
				category, promptErr := a.promptCategory(cmd, flags.txType)
				if promptErr != nil {
					return promptErr
				}
				flags.category = category
			}
			if flags.currency == "" {
				flags.currency = viper.GetString("entry.currency")
			}

			input, err := buildInput(flags, time.Now())
			if err != nil {
				return err
			}

			record := model.NewTransaction(engine.NewID(), input, time.Now())
			if err := a.store.InsertTransaction(ctx, record); err != nil {
				return fmt.Errorf("failed to save entry: %w", err)
			}
			if _, err := a.store.TouchRecentCategory(ctx, input.Type, input.Category); err != nil {
				a.logger.Warn("Failed to update recent categories", "error", err)
			}

			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Saved %s %s (%s)",
				input.Type, cli.FormatAmount(input.Amount, input.Currency, input.Type), input.Category)))

			if offline {
				return a.reportPending(ctx)
			}
			return a.syncIfPossible(ctx, a.syncer())
		},
	}

	cmd.Flags().StringVarP(&flags.txType, "type", "t", string(model.TypeExpense), "expense, income or transfer")
	cmd.Flags().StringVarP(&flags.amount, "amount", "a", "", "positive amount, e.g. 12.50")
	cmd.Flags().StringVarP(&flags.category, "category", "c", "", "category (prompted when omitted)")
	cmd.Flags().StringVar(&flags.currency, "currency", "", "ISO currency code (default entry.currency)")
	cmd.Flags().StringVar(&flags.account, "account", "", "account the money moved through")
	cmd.Flags().StringVar(&flags.forWhom, "for", "", "who the entry was for")
	cmd.Flags().StringVarP(&flags.date, "date", "d", "", "local date and time as YYYY-MM-DDTHH:MM (default now)")
	cmd.Flags().StringVarP(&flags.note, "note", "n", "", "free-form note")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "tag, repeatable")
	cmd.Flags().BoolVar(&offline, "offline", false, "queue without trying to sync")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// promptCategory offers recents and configured categories for the type.
func (a *app) promptCategory(cmd *cobra.Command, rawType string) (string, error) {
	ctx := cmd.Context()
	txType, err := model.ParseTransactionType(rawType)
	if err != nil {
		return "", err
	}

	state, err := a.store.LoadOnboardingState(ctx)
	if err != nil {
		return "", err
	}
	recents, err := a.store.LoadRecentCategories(ctx)
	if err != nil {
		return "", err
	}

	prompter := cli.NewCLIPrompter(cmd.InOrStdin(), a.out)
	return prompter.ChooseCategory(ctx, txType, state.Categories.ForType(txType), recents.ForType(txType))
}

// syncIfPossible drains the queue when online and signed in, and otherwise
// reports what is waiting.
func (a *app) syncIfPossible(ctx context.Context, syncer *engine.Syncer) error {
	session, err := a.session(ctx, a.online(ctx))
	if err != nil {
		return err
	}
	if !session.Online || session.AccessToken == "" {
		return a.reportPending(ctx)
	}

	session, err = a.ensureSheet(ctx, session)
	if err != nil {
		return err
	}

	result, err := syncer.SyncPending(ctx, session.AccessToken, session.SheetID)
	if err != nil {
		return a.remoteFailure(ctx, err)
	}
	return a.reportSync(ctx, result)
}

func (a *app) reportSync(ctx context.Context, result engine.SyncResult) error {
	switch {
	case result.Skipped:
		fmt.Fprintln(a.out, cli.FormatInfo("A sync is already running"))
		return nil
	case result.Synced > 0:
		fmt.Fprintln(a.out, cli.FormatSuccess("Synced "+cli.Pluralize(result.Synced, "entry", "entries")))
	}
	if result.Failed > 0 {
		fmt.Fprintln(a.out, cli.FormatError(cli.Pluralize(result.Failed, "entry", "entries")+" failed; see sheetlog list"))
	}
	if result.Remaining > 0 {
		return a.reportPending(ctx)
	}
	return nil
}

func (a *app) reportPending(ctx context.Context) error {
	pending, err := a.store.CountPending(ctx)
	if err != nil {
		return err
	}
	if pending > 0 {
		fmt.Fprintln(a.out, cli.FormatWarning(cli.Pluralize(pending, "entry", "entries")+" waiting to sync"))
	}
	return nil
}
