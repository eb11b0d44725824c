// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/sheetlog/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidStatus      = errors.New("invalid sync status")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrCorruptRecord      = errors.New("corrupt record")
	ErrInvalidLease       = errors.New("invalid lease")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateStatus(status model.SyncStatus) error {
	switch status {
	case model.StatusPending, model.StatusSynced, model.StatusError:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

// validateRecord validates a record before insert.
func validateRecord(record *model.TransactionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if !record.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidTransaction, record.Type)
	}
	if strings.TrimSpace(record.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidTransaction)
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created time", ErrInvalidTransaction)
	}
	if err := validateStatus(record.Status); err != nil {
		return err
	}
	return nil
}

// validatePatch rejects patches that would break the record invariants.
func validatePatch(patch model.TransactionPatch) error {
	if patch.Status != nil {
		if err := validateStatus(*patch.Status); err != nil {
			return err
		}
	}
	if patch.SheetRow != nil && *patch.SheetRow < 0 {
		return fmt.Errorf("%w: negative sheet row", ErrInvalidTransaction)
	}
	return nil
}
