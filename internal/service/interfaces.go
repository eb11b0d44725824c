// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/sheetlog/internal/model"
)

// Ledger is the local durable queue of transaction records.
type Ledger interface {
	InsertTransaction(ctx context.Context, record *model.TransactionRecord) error
	UpdateTransaction(ctx context.Context, id string, patch model.TransactionPatch) error
	// DeleteTransaction is idempotent: deleting a missing id is not an error.
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*model.TransactionRecord, error)
	// GetPendingTransactions returns pending records oldest first.
	GetPendingTransactions(ctx context.Context) ([]model.TransactionRecord, error)
	// GetLastTransaction returns the most recently created record or common.ErrNotFound.
	GetLastTransaction(ctx context.Context) (*model.TransactionRecord, error)
	CountPending(ctx context.Context) (int, error)
}

// Lease is a named, expiring lock shared by every process that opens the
// same ledger.
type Lease interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// SettingsStore persists process-wide configuration.
type SettingsStore interface {
	LoadOnboardingState(ctx context.Context) (model.OnboardingState, error)
	SaveOnboardingState(ctx context.Context, state model.OnboardingState) error
}

// SheetClient is the remote spreadsheet the ledger reconciles with.
// Every method authenticates with the given bearer token.
type SheetClient interface {
	// EnsureSheet locates or creates the spreadsheet and its header rows.
	EnsureSheet(ctx context.Context, token, folderID string) (string, error)
	// GetTabID resolves the transactions tab; nil when the tab does not exist.
	GetTabID(ctx context.Context, token, sheetID string) (*int64, error)
	// AppendRow returns the 1-based row the record landed on, or 0 when unknown.
	AppendRow(ctx context.Context, token, sheetID string, record *model.TransactionRecord) (int, error)
	// DeleteRow removes exactly one row and rejects the header row.
	DeleteRow(ctx context.Context, token, sheetID string, tabID int64, row int) error
	// ReadTransactionIDs maps record ids already present remotely to their rows.
	ReadTransactionIDs(ctx context.Context, token, sheetID string) (map[string]int, error)
	// ReadConfigBlock returns nil when the sheet holds no configuration.
	ReadConfigBlock(ctx context.Context, token, sheetID string) (*model.SheetConfig, error)
	WriteConfigBlock(ctx context.Context, token, sheetID string, config model.SheetConfig) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
