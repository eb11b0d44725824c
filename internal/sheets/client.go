package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Spreadsheet layout.
const (
	DefaultSpreadsheetName = "SheetLog_DB"
	TransactionsTab        = "Transactions"
	AccountsTab            = "Account"
	CategoriesTab          = "Category"

	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	valueInputRaw       = "RAW"
	valueInputUser      = "USER_ENTERED"
)

// TransactionHeader is row 1 of the transactions tab.
var TransactionHeader = []any{
	"Date", "Type", "Amount", "Category", "Tags", "Note",
	"Timestamp", "Source", "Currency", "Account", "For", "Id",
}

var (
	accountsHeader   = []any{"Account"}
	categoriesHeader = []any{"Type", "Category"}

	appendedRowPattern = regexp.MustCompile(`!A(\d+):`)
	currencyPrefix     = regexp.MustCompile(`^\[([A-Z]{3})\]\s*`)
)

// Client talks to the Sheets and Drive APIs on behalf of one user.
// The bearer token is supplied per call so credentials never live on the client.
type Client struct {
	logger *slog.Logger
	config Config
}

var _ service.SheetClient = (*Client)(nil)

// NewClient creates a new Google Sheets client.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{config: config, logger: logger}, nil
}

func (c *Client) clientOptions(ctx context.Context, token, endpoint string) []option.ClientOption {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

func (c *Client) sheetsService(ctx context.Context, token string) (*sheets.Service, error) {
	srv, err := sheets.NewService(ctx, c.clientOptions(ctx, token, c.config.SheetsEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (c *Client) driveService(ctx context.Context, token string) (*drive.Service, error) {
	srv, err := drive.NewService(ctx, c.clientOptions(ctx, token, c.config.DriveEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}
	return srv, nil
}

// read retries an idempotent call while the classifier deems the failure transient.
func (c *Client) read(ctx context.Context, operation func() error) error {
	opts := service.RetryOptions{
		MaxAttempts:  c.config.RetryAttempts,
		InitialDelay: c.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	return common.WithRetry(ctx, func() error {
		err := operation()
		if err == nil {
			return nil
		}
		return &common.RetryableError{Err: err, Retryable: ClassifyError(err).Retryable}
	}, opts)
}

// EnsureSheet finds the ledger spreadsheet by name, creating it when missing,
// and makes sure every tab carries its header row.
func (c *Client) EnsureSheet(ctx context.Context, token, folderID string) (string, error) {
	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return "", err
	}

	existing, err := c.findSheet(ctx, token, folderID)
	if err != nil {
		return "", err
	}

	if existing != "" {
		if err := c.writeHeader(ctx, srv, existing, TransactionsTab+"!A1:L1", TransactionHeader); err != nil {
			return "", err
		}
		if err := c.ensureTab(ctx, srv, existing, AccountsTab, "!A1:A1", accountsHeader); err != nil {
			return "", err
		}
		if err := c.ensureTab(ctx, srv, existing, CategoriesTab, "!A1:B1", categoriesHeader); err != nil {
			return "", err
		}
		c.logger.Debug("using existing spreadsheet", "sheet_id", existing)
		return existing, nil
	}

	created, err := c.createSheet(ctx, srv)
	if err != nil {
		return "", err
	}

	if folderID != "" {
		if err := c.moveToFolder(ctx, token, created, folderID); err != nil {
			return "", err
		}
	}

	return created, nil
}

func (c *Client) findSheet(ctx context.Context, token, folderID string) (string, error) {
	srv, err := c.driveService(ctx, token)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		escapeQuery(c.config.SpreadsheetName), spreadsheetMimeType)
	if folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(folderID))
	}

	var list *drive.FileList
	err = c.read(ctx, func() error {
		var listErr error
		list, listErr = srv.Files.List().Q(query).Fields("files(id,name)").Context(ctx).Do()
		return listErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to search for spreadsheet: %w", err)
	}

	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *Client) createSheet(ctx context.Context, srv *sheets.Service) (string, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: c.config.SpreadsheetName,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: TransactionsTab}},
			{Properties: &sheets.SheetProperties{Title: AccountsTab}},
			{Properties: &sheets.SheetProperties{Title: CategoriesTab}},
		},
	}

	created, err := srv.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	id := created.SpreadsheetId
	if err := c.writeHeader(ctx, srv, id, TransactionsTab+"!A1:L1", TransactionHeader); err != nil {
		return "", err
	}
	if err := c.writeHeader(ctx, srv, id, AccountsTab+"!A1:A1", accountsHeader); err != nil {
		return "", err
	}
	if err := c.writeHeader(ctx, srv, id, CategoriesTab+"!A1:B1", categoriesHeader); err != nil {
		return "", err
	}

	c.logger.Info("created new spreadsheet",
		"sheet_id", id,
		"url", created.SpreadsheetUrl)

	return id, nil
}

func (c *Client) moveToFolder(ctx context.Context, token, fileID, folderID string) error {
	srv, err := c.driveService(ctx, token)
	if err != nil {
		return err
	}

	var file *drive.File
	err = c.read(ctx, func() error {
		var getErr error
		file, getErr = srv.Files.Get(fileID).Fields("parents").Context(ctx).Do()
		return getErr
	})
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet parents: %w", err)
	}

	if len(file.Parents) == 1 && file.Parents[0] == folderID {
		return nil
	}

	remove := make([]string, 0, len(file.Parents))
	for _, parent := range file.Parents {
		if parent != folderID {
			remove = append(remove, parent)
		}
	}

	call := srv.Files.Update(fileID, &drive.File{}).AddParents(folderID).Fields("id,parents")
	if len(remove) > 0 {
		call = call.RemoveParents(strings.Join(remove, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to move spreadsheet to folder: %w", err)
	}

	c.logger.Info("moved spreadsheet", "sheet_id", fileID, "folder_id", folderID)
	return nil
}

func (c *Client) writeHeader(ctx context.Context, srv *sheets.Service, sheetID, rng string, header []any) error {
	_, err := srv.Spreadsheets.Values.Update(sheetID, rng, &sheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header %s: %w", rng, err)
	}
	return nil
}

// ensureTab adds the tab when it is missing and rewrites its header.
func (c *Client) ensureTab(ctx context.Context, srv *sheets.Service, sheetID, title, headerRange string, header []any) error {
	tabID, err := c.tabID(ctx, srv, sheetID, title)
	if err != nil {
		return err
	}

	if tabID == nil {
		_, err := srv.Spreadsheets.BatchUpdate(sheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to add %s tab: %w", title, err)
		}
		c.logger.Info("added missing tab", "sheet_id", sheetID, "tab", title)
	}

	return c.writeHeader(ctx, srv, sheetID, title+headerRange, header)
}

// GetTabID returns the numeric id of the transactions tab, or nil when it does not exist.
func (c *Client) GetTabID(ctx context.Context, token, sheetID string) (*int64, error) {
	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.tabID(ctx, srv, sheetID, TransactionsTab)
}

func (c *Client) tabID(ctx context.Context, srv *sheets.Service, sheetID, title string) (*int64, error) {
	var spreadsheet *sheets.Spreadsheet
	err := c.read(ctx, func() error {
		var getErr error
		spreadsheet, getErr = srv.Spreadsheets.Get(sheetID).
			Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tabs: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			id := sheet.Properties.SheetId
			return &id, nil
		}
	}
	return nil, nil
}

// AppendRow appends one record and returns the 1-based row it landed on, or 0 when
// the response did not say.
func (c *Client) AppendRow(ctx context.Context, token, sheetID string, record *model.TransactionRecord) (int, error) {
	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return 0, err
	}

	resp, err := srv.Spreadsheets.Values.Append(sheetID, TransactionsTab+"!A:L", &sheets.ValueRange{
		Values: [][]any{c.rowValues(record)},
	}).ValueInputOption(valueInputUser).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to append row: %w", err)
	}

	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return 0, nil
	}
	return ParseRowFromRange(resp.Updates.UpdatedRange), nil
}

func (c *Client) rowValues(record *model.TransactionRecord) []any {
	note, currency := liftCurrency(record.Note, record.Currency)
	return []any{
		record.Date,
		string(record.Type),
		record.Amount.String(),
		record.Category,
		strings.Join(record.Tags, ", "),
		note,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.config.Source,
		currency,
		record.Account,
		record.For,
		record.ID,
	}
}

// liftCurrency moves a "[USD] " note prefix into the currency column when none is set.
func liftCurrency(note, currency string) (string, string) {
	if currency != "" || note == "" {
		return note, currency
	}
	match := currencyPrefix.FindStringSubmatch(note)
	if match == nil {
		return note, currency
	}
	return note[len(match[0]):], match[1]
}

// ParseRowFromRange extracts the first row from an A1 range such as
// "Transactions!A7:L7". It returns 0 when the range has no row.
func ParseRowFromRange(rng string) int {
	match := appendedRowPattern.FindStringSubmatch(rng)
	if match == nil {
		return 0
	}
	row, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return row
}

// DeleteRow removes exactly one 1-based row from the tab. Row 1 is the header
// and is never deleted.
func (c *Client) DeleteRow(ctx context.Context, token, sheetID string, tabID int64, row int) error {
	if row <= 1 {
		return fmt.Errorf("%w: row %d", common.ErrHeaderRow, row)
	}

	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return err
	}

	_, err = srv.Spreadsheets.BatchUpdate(sheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    tabID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// The first tab has id 0, which would otherwise be omitted.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete row %d: %w", row, err)
	}
	return nil
}

// ReadTransactionIDs maps the record ids already in the transactions tab to their rows.
func (c *Client) ReadTransactionIDs(ctx context.Context, token, sheetID string) (map[string]int, error) {
	rows, err := c.readValues(ctx, token, sheetID, TransactionsTab+"!L2:L")
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction ids: %w", err)
	}

	ids := make(map[string]int, len(rows))
	for i, row := range rows {
		id := cell(row, 0)
		if id == "" {
			continue
		}
		if _, seen := ids[id]; !seen {
			ids[id] = i + 2
		}
	}
	return ids, nil
}

func (c *Client) readValues(ctx context.Context, token, sheetID, rng string) ([][]any, error) {
	srv, err := c.sheetsService(ctx, token)
	if err != nil {
		return nil, err
	}

	var values *sheets.ValueRange
	err = c.read(ctx, func() error {
		var getErr error
		values, getErr = srv.Spreadsheets.Values.Get(sheetID, rng).Context(ctx).Do()
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return values.Values, nil
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func escapeQuery(value string) string {
	return strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), "'", `\'`)
}
