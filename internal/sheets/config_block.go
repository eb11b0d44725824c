package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/sheetlog/internal/model"
	"google.golang.org/api/sheets/v4"
)

// ReadConfigBlock reads the accounts and categories tabs. A tab that is missing
// or empty counts as absent; nil is returned when both are absent. Any other
// failure, including a missing spreadsheet, is returned.
func (c *Client) ReadConfigBlock(ctx context.Context, token, sheetID string) (*model.SheetConfig, error) {
	accountRows, err := c.readConfigTab(ctx, token, sheetID, AccountsTab+"!A2:A")
	if err != nil {
		return nil, err
	}
	categoryRows, err := c.readConfigTab(ctx, token, sheetID, CategoriesTab+"!A2:B")
	if err != nil {
		return nil, err
	}

	accounts := parseAccounts(accountRows)
	categories := parseCategories(categoryRows)
	if accounts == nil && categories == nil {
		return nil, nil
	}
	return &model.SheetConfig{Accounts: accounts, Categories: categories}, nil
}

func (c *Client) readConfigTab(ctx context.Context, token, sheetID, rng string) ([][]any, error) {
	rows, err := c.readValues(ctx, token, sheetID, rng)
	if err == nil {
		return rows, nil
	}

	// A range naming a tab that does not exist is rejected as unparsable.
	if ClassifyError(err).Status == http.StatusBadRequest {
		c.logger.Debug("config tab unavailable", "range", rng, "error", err)
		return nil, nil
	}
	return nil, fmt.Errorf("failed to read %s: %w", rng, err)
}

func parseAccounts(rows [][]any) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, cell(row, 0))
	}
	accounts := model.NormalizeStringList(values)
	if len(accounts) == 0 {
		return nil
	}
	return accounts
}

func parseCategories(rows [][]any) *model.CategoryConfig {
	lists := map[model.TransactionType][]string{}
	seen := map[model.TransactionType]map[string]bool{}

	for _, row := range rows {
		t := model.TransactionType(strings.ToLower(cell(row, 0)))
		value := cell(row, 1)
		if value == "" || !t.Valid() {
			continue
		}
		if seen[t] == nil {
			seen[t] = map[string]bool{}
		}
		key := strings.ToLower(value)
		if seen[t][key] {
			continue
		}
		seen[t][key] = true
		lists[t] = append(lists[t], value)
	}

	if len(lists) == 0 {
		return nil
	}
	return &model.CategoryConfig{
		Expense:  append([]string{}, lists[model.TypeExpense]...),
		Income:   append([]string{}, lists[model.TypeIncome]...),
		Transfer: append([]string{}, lists[model.TypeTransfer]...),
	}
}

// WriteConfigBlock replaces the accounts and/or categories tabs with the given
// lists. Sections left nil are not touched.
func (c *Client) WriteConfigBlock(ctx context.Context, token, sheetID string, config model.SheetConfig) error {
	if config.Accounts == nil && config.Categories == nil {
		return nil
	}

	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return err
	}

	if config.Accounts != nil {
		accounts := model.NormalizeStringList(config.Accounts)
		rows := make([][]any, 0, len(accounts))
		for _, account := range accounts {
			rows = append(rows, []any{account})
		}
		if err := c.ensureTab(ctx, srv, sheetID, AccountsTab, "!A1:A1", accountsHeader); err != nil {
			return err
		}
		if err := c.replaceRows(ctx, srv, sheetID, AccountsTab, "A", rows); err != nil {
			return err
		}
	}

	if config.Categories != nil {
		categories := config.Categories.Normalize()
		var rows [][]any
		for _, t := range model.TransactionTypes {
			for _, category := range categories.ForType(t) {
				rows = append(rows, []any{string(t), category})
			}
		}
		if err := c.ensureTab(ctx, srv, sheetID, CategoriesTab, "!A1:B1", categoriesHeader); err != nil {
			return err
		}
		if err := c.replaceRows(ctx, srv, sheetID, CategoriesTab, "B", rows); err != nil {
			return err
		}
	}

	c.logger.Debug("wrote config block",
		"sheet_id", sheetID,
		"accounts", config.Accounts != nil,
		"categories", config.Categories != nil)
	return nil
}

// replaceRows clears everything below the header and writes rows from A2.
func (c *Client) replaceRows(ctx context.Context, srv *sheets.Service, sheetID, tab, lastColumn string, rows [][]any) error {
	clearRange := fmt.Sprintf("%s!A2:%s", tab, lastColumn)
	if _, err := srv.Spreadsheets.Values.Clear(sheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", clearRange, err)
	}

	if len(rows) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A2:%s%d", tab, lastColumn, len(rows)+1)
	_, err := srv.Spreadsheets.Values.Update(sheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}
	return nil
}
