package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/sheetlog/internal/cli"
	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/ofx"
	"github.com/Veraticus/sheetlog/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	var (
		dryRun  bool
		offline bool
		account string
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Queue transactions from OFX/QFX bank exports",
		Long: `Queue transactions from OFX or QFX (Quicken) files exported from your bank.

Debits become expenses and credits become income, all in the "Other"
category. Re-importing a file skips lines that are already in the ledger.

Examples:
  sheetlog import ~/Downloads/checking_jan.qfx
  sheetlog import ~/Downloads/*.ofx --account Checking`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			opts := []ofx.Option{}
			if currency := viper.GetString("entry.currency"); currency != "" {
				opts = append(opts, ofx.WithDefaultCurrency(currency))
			}
			parser := ofx.NewParser(a.logger, opts...)

			var total importStats
			for _, path := range files {
				entries, parseErr := parseOFXFile(ctx, parser, path)
				if parseErr != nil {
					fmt.Fprintln(a.out, cli.FormatError(parseErr.Error()))
					continue
				}
				if account != "" {
					for i := range entries {
						entries[i].Input.Account = account
					}
				}

				stats, importErr := importEntries(ctx, a.store, entries, time.Now(), dryRun)
				if importErr != nil {
					return importErr
				}
				fmt.Fprintf(a.out, "  %s: %s, %d already imported\n",
					filepath.Base(path), cli.Pluralize(stats.Queued, "new entry", "new entries"), stats.Duplicates)
				total.add(stats)
			}

			if dryRun {
				fmt.Fprintln(a.out, cli.FormatInfo("Dry run: "+cli.Pluralize(total.Queued, "entry", "entries")+" would be queued"))
				return nil
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Queued "+cli.Pluralize(total.Queued, "entry", "entries")))

			if total.Queued == 0 || offline {
				return a.reportPending(ctx)
			}
			return a.syncIfPossible(ctx, a.syncer())
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse and count without queueing")
	cmd.Flags().BoolVar(&offline, "offline", false, "queue without trying to sync")
	cmd.Flags().StringVar(&account, "account", "", "account name to use instead of the statement's account id")
	return cmd
}

type importStats struct {
	Queued     int
	Duplicates int
	Invalid    int
}

func (s *importStats) add(other importStats) {
	s.Queued += other.Queued
	s.Duplicates += other.Duplicates
	s.Invalid += other.Invalid
}

// importEntries queues entries whose ids are not in the ledger yet. Entries
// keep the statement order through increasing creation times.
func importEntries(ctx context.Context, ledger service.Ledger, entries []ofx.Entry, now time.Time, dryRun bool) (importStats, error) {
	var stats importStats
	for i, entry := range entries {
		if err := entry.Input.Validate(); err != nil {
			stats.Invalid++
			continue
		}

		_, err := ledger.GetTransaction(ctx, entry.ID)
		switch {
		case err == nil:
			stats.Duplicates++
			continue
		case !errors.Is(err, common.ErrNotFound):
			return stats, fmt.Errorf("failed to check entry %s: %w", entry.FitID, err)
		}

		stats.Queued++
		if dryRun {
			continue
		}
		record := model.NewTransaction(entry.ID, entry.Input, now.Add(time.Duration(i)*time.Microsecond))
		if err := ledger.InsertTransaction(ctx, record); err != nil {
			return stats, fmt.Errorf("failed to queue entry %s: %w", entry.FitID, err)
		}
	}
	return stats, nil
}

func parseOFXFile(ctx context.Context, parser *ofx.Parser, path string) ([]ofx.Entry, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	entries, err := parser.ParseFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// expandFiles resolves globs; plain paths must exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		}
	}
	if len(files) == 0 {
		return nil, common.NewUserError("No files found to import.", nil)
	}
	return files, nil
}
