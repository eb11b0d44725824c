package ofx

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240130120000[0:GMT]
<TRNAMT>2000.00
<FITID>2024013001
<NAME>PAYMENT
<MEMO>ACME PAYROLL
</STMTTRN>
<STMTTRN>
<TRNTYPE>OTHER
<DTPOSTED>20240131120000[0:GMT]
<TRNAMT>0.00
<FITID>2024013101
<NAME>BALANCE ADJUSTMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>EUR
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func newTestParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithLocation(time.UTC),
		WithDefaultCurrency("USD"))
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 4,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := newTestParser().ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.expectedCount)
			for _, entry := range entries {
				assert.NoError(t, entry.Input.Validate(), entry.FitID)
			}
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	entries, err := newTestParser().ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	starbucks := entries[0]
	assert.Equal(t, "2024011501", starbucks.FitID)
	assert.Equal(t, EntryID("1234567890", "2024011501"), starbucks.ID)
	assert.True(t, starbucks.Input.Amount.Equal(decimal.RequireFromString("25.50")))
	starbucks.Input.Amount = decimal.Zero
	assert.Equal(t, model.TransactionInput{
		Type:     model.TypeExpense,
		Amount:   decimal.Zero,
		Currency: "USD",
		Account:  "1234567890",
		Category: DefaultCategory,
		Date:     "2024-01-15T12:00",
		Note:     "STARBUCKS STORE #1234",
	}, starbucks.Input)

	assert.Equal(t, "Whole Foods Market", entries[1].Input.Note)
	assert.True(t, entries[1].Input.Amount.Equal(decimal.NewFromInt(125)))

	assert.Equal(t, "CHECK #1234", entries[2].Input.Note)
	assert.True(t, entries[2].Input.Amount.Equal(decimal.NewFromInt(500)))

	payroll := entries[3]
	assert.Equal(t, model.TypeIncome, payroll.Input.Type)
	assert.True(t, payroll.Input.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "ACME PAYROLL", payroll.Input.Note)
	assert.Equal(t, "2024-01-30T12:00", payroll.Input.Date)
}

func TestParseCreditCardTransactions(t *testing.T) {
	entries, err := newTestParser().ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	amazon := entries[0]
	assert.Equal(t, "CC2024011001", amazon.FitID)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", amazon.Input.Note)
	assert.True(t, amazon.Input.Amount.Equal(decimal.RequireFromString("45.99")))
	assert.Equal(t, "4111111111111111", amazon.Input.Account)
	assert.Equal(t, "EUR", amazon.Input.Currency)
	assert.Equal(t, model.TypeExpense, amazon.Input.Type)

	netflix := entries[1]
	assert.Equal(t, "NETFLIX.COM", netflix.Input.Note)
	assert.True(t, netflix.Input.Amount.Equal(decimal.NewFromInt(15)))
}

func TestParseFile_Location(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	parser := NewParser(nil, WithLocation(tokyo))

	entries, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "2024-01-10T21:00", entries[0].Input.Date)
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, EntryID("acct", "fit-1"), EntryID("acct", "fit-1"))
	assert.NotEqual(t, EntryID("acct", "fit-1"), EntryID("acct", "fit-2"))
	assert.NotEqual(t, EntryID("acct-a", "fit-1"), EntryID("acct-b", "fit-1"))
	// "ab"+"c" and "a"+"bc" must not collide
	assert.NotEqual(t, EntryID("ab", "c"), EntryID("a", "bc"))
}

func TestExtractMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{
			name:     "remove POS prefix",
			tx:       ofxgo.Transaction{Name: "POS PURCHASE STARBUCKS"},
			expected: "STARBUCKS",
		},
		{
			name:     "remove DEBIT CARD prefix",
			tx:       ofxgo.Transaction{Name: "DEBIT CARD PURCHASE WHOLE FOODS"},
			expected: "WHOLE FOODS",
		},
		{
			name:     "keep clean name",
			tx:       ofxgo.Transaction{Name: "NETFLIX.COM"},
			expected: "NETFLIX.COM",
		},
		{
			name:     "trim whitespace",
			tx:       ofxgo.Transaction{Name: "  AMAZON.COM  "},
			expected: "AMAZON.COM",
		},
		{
			name:     "strip date stamp",
			tx:       ofxgo.Transaction{Name: "03/14 CORNER BAKERY"},
			expected: "CORNER BAKERY",
		},
		{
			name:     "generic name falls back to memo",
			tx:       ofxgo.Transaction{Name: "DEBIT", Memo: "CITY PARKING"},
			expected: "CITY PARKING",
		},
		{
			name:     "payee wins",
			tx:       ofxgo.Transaction{Name: "ACH DEBIT 123", Payee: &ofxgo.Payee{Name: "Electric Co"}},
			expected: "Electric Co",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractMerchantName(tt.tx))
		})
	}
}

func TestGetAccounts(t *testing.T) {
	parser := newTestParser()

	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"1234567890"}, accounts)

	accounts, err = parser.GetAccounts(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"4111111111111111"}, accounts)
}
