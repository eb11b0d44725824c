// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of money movement a record describes.
type TransactionType string

// Transaction types.
const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// TransactionTypes lists every type in display order.
var TransactionTypes = []TransactionType{TypeExpense, TypeIncome, TypeTransfer}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// SyncStatus tracks where a record is in the sync state machine:
//
//	pending -> synced
//	pending -> pending (retryable failure, picked up by the next pass)
//	pending -> error   (terminal until superseded by undo)
type SyncStatus string

// Sync statuses.
const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

// LocalDateLayout is the zone-less layout used for the user-entered date.
const LocalDateLayout = "2006-01-02T15:04"

// UndoNotePrefix marks compensating entries.
const UndoNotePrefix = "UNDO"

// Validation errors for transaction input.
var (
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrMissingField  = errors.New("missing required field")
)

// TransactionInput holds the user-entered part of a transaction.
type TransactionInput struct {
	Amount   decimal.Decimal
	Type     TransactionType
	Currency string
	Account  string
	For      string
	Category string
	Date     string // local date-time as entered, no zone
	Note     string
	Tags     []string
}

// Validate checks the input before it is queued.
func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if in.Amount.IsZero() || in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category", ErrMissingField)
	}
	if _, err := time.Parse(LocalDateLayout, in.Date); err != nil {
		return fmt.Errorf("%w: %q (want %s)", ErrInvalidDate, in.Date, LocalDateLayout)
	}
	return nil
}

// TransactionRecord is the unit of ledger state.
type TransactionRecord struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Amount    decimal.Decimal
	ID        string
	Type      TransactionType
	Currency  string
	Account   string
	For       string
	Category  string
	Date      string
	Note      string
	Status    SyncStatus
	SheetID   string // only meaningful when Status is synced
	Error     string
	Tags      []string
	SheetRow  int // 1-based; only meaningful when Status is synced
}

// NewTransaction creates a pending record from user input.
func NewTransaction(id string, in TransactionInput, now time.Time) *TransactionRecord {
	now = now.UTC()
	return &TransactionRecord{
		ID:        id,
		Type:      in.Type,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Account:   in.Account,
		For:       in.For,
		Category:  in.Category,
		Date:      in.Date,
		Note:      in.Note,
		Tags:      append([]string(nil), in.Tags...),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Compensate returns a pending entry that cancels r when both are summed.
func (r *TransactionRecord) Compensate(id string, now time.Time) *TransactionRecord {
	note := UndoNotePrefix
	if r.Note != "" {
		note = UndoNotePrefix + ": " + r.Note
	}
	now = now.UTC()
	return &TransactionRecord{
		ID:        id,
		Type:      r.Type,
		Amount:    r.Amount.Neg(),
		Currency:  r.Currency,
		Account:   r.Account,
		For:       r.For,
		Category:  r.Category,
		Date:      r.Date,
		Note:      note,
		Tags:      append([]string(nil), r.Tags...),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCompensating reports whether r reverses an earlier entry.
func (r *TransactionRecord) IsCompensating() bool {
	return r.Amount.IsNegative() && strings.HasPrefix(r.Note, UndoNotePrefix)
}

// TransactionPatch is a partial update applied by id. Nil fields are left alone.
type TransactionPatch struct {
	Status   *SyncStatus
	SheetRow *int
	SheetID  *string
	Error    *string
}

// SyncedPatch marks a record as confirmed remotely.
func SyncedPatch(sheetID string, row int) TransactionPatch {
	status := StatusSynced
	empty := ""
	return TransactionPatch{
		Status:   &status,
		SheetRow: &row,
		SheetID:  &sheetID,
		Error:    &empty,
	}
}

// FailedPatch records a failed attempt, keeping the record pending when retryable.
func FailedPatch(message string, retryable bool) TransactionPatch {
	status := StatusError
	if retryable {
		status = StatusPending
	}
	return TransactionPatch{
		Status: &status,
		Error:  &message,
	}
}
