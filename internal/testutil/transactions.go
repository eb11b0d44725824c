package testutil

import (
	"time"

	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/shopspring/decimal"
)

// BaseTime is the creation time builders start from.
var BaseTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// TransactionBuilder builds TransactionRecords for tests.
type TransactionBuilder struct {
	record model.TransactionRecord
}

// NewTransaction starts a pending 10.00 expense created at BaseTime.
func NewTransaction(id string) *TransactionBuilder {
	record := model.NewTransaction(id, model.TransactionInput{
		Type:     model.TypeExpense,
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
		Account:  "Cash",
		Category: "Food",
		Date:     "2024-03-15T12:00",
	}, BaseTime)
	return &TransactionBuilder{record: *record}
}

// CreatedAt sets both timestamps.
func (b *TransactionBuilder) CreatedAt(t time.Time) *TransactionBuilder {
	b.record.CreatedAt = t.UTC()
	b.record.UpdatedAt = t.UTC()
	return b
}

// CreatedAfter offsets the creation time from BaseTime.
func (b *TransactionBuilder) CreatedAfter(d time.Duration) *TransactionBuilder {
	return b.CreatedAt(BaseTime.Add(d))
}

// Amount sets the amount from a decimal string.
func (b *TransactionBuilder) Amount(value string) *TransactionBuilder {
	b.record.Amount = decimal.RequireFromString(value)
	return b
}

// Type sets the transaction type.
func (b *TransactionBuilder) Type(t model.TransactionType) *TransactionBuilder {
	b.record.Type = t
	return b
}

// Note sets the note.
func (b *TransactionBuilder) Note(note string) *TransactionBuilder {
	b.record.Note = note
	return b
}

// Synced marks the record as synced at row of sheetID.
func (b *TransactionBuilder) Synced(sheetID string, row int) *TransactionBuilder {
	b.record.Status = model.StatusSynced
	b.record.SheetID = sheetID
	b.record.SheetRow = row
	return b
}

// Failed marks the record as terminally failed.
func (b *TransactionBuilder) Failed(message string) *TransactionBuilder {
	b.record.Status = model.StatusError
	b.record.Error = message
	return b
}

// Build returns the record.
func (b *TransactionBuilder) Build() *model.TransactionRecord {
	record := b.record
	record.Tags = append([]string{}, b.record.Tags...)
	return &record
}
