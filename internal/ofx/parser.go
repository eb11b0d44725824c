// Package ofx turns OFX/QFX bank and card statements into ledger entries.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to every imported entry.
const DefaultCategory = "Other"

// importNamespace scopes the deterministic ids of imported entries.
var importNamespace = uuid.MustParse("6f1c7a52-3d4e-4b8a-9c51-2f0e8d7b6a13")

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Entry is one statement line ready to be queued.
type Entry struct {
	// ID is derived from the account and FITID so re-importing a file is a no-op.
	ID    string
	FitID string
	Input model.TransactionInput
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the zone posted dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		p.location = loc
	}
}

// WithDefaultCurrency sets the currency used when a statement has none.
func WithDefaultCurrency(code string) Option {
	return func(p *Parser) {
		p.currency = code
	}
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger   *slog.Logger
	location *time.Location
	currency string
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{logger: logger, location: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML files sometimes drop the closing bracket of a bare opening tag
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func parseResponse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file into entries in statement order.
// Zero-amount lines are skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	resp, err := parseResponse(reader)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID), currencyCode(stmt.CurDef))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID), currencyCode(stmt.CurDef))...)
		}
	}

	p.logger.InfoContext(ctx, "Parsed OFX file",
		"entries", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID, currency string) []Entry {
	if list == nil {
		return nil
	}
	if currency == "" {
		currency = p.currency
	}

	var entries []Entry
	for _, ofxTx := range list.Transactions {
		entry, ok := p.convertTransaction(ofxTx, accountID, currency)
		if !ok {
			p.logger.Debug("Skipping OFX line", "fitid", string(ofxTx.FiTID), "account", accountID)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// convertTransaction maps one statement line. Debits (negative amounts)
// become expenses and credits become income.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency string) (Entry, bool) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(4))
	if err != nil || amount.IsZero() {
		return Entry{}, false
	}

	txType := model.TypeIncome
	if amount.IsNegative() {
		txType = model.TypeExpense
	}

	fitID := string(ofxTx.FiTID)
	return Entry{
		ID:    EntryID(accountID, fitID),
		FitID: fitID,
		Input: model.TransactionInput{
			Type:     txType,
			Amount:   amount.Abs(),
			Currency: currency,
			Account:  accountID,
			Category: DefaultCategory,
			Date:     ofxTx.DtPosted.In(p.location).Format(model.LocalDateLayout),
			Note:     extractMerchantName(ofxTx),
		},
	}, true
}

// EntryID returns the record id an imported line gets.
func EntryID(accountID, fitID string) string {
	return uuid.NewSHA1(importNamespace, []byte(accountID+"\x00"+fitID)).String()
}

func currencyCode(symbol ofxgo.CurrSymbol) string {
	code := symbol.String()
	if code == "" || code == "XXX" {
		return ""
	}
	return code
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " date stamps
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file in statement order.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := parseResponse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			accounts = append(accounts, id)
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(string(stmt.BankAcctFrom.AcctID))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(string(stmt.CCAcctFrom.AcctID))
		}
	}

	return accounts, nil
}
