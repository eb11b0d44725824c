package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
)

// UndoResult describes what UndoLast did.
type UndoResult struct {
	// TabID is the transactions tab id resolved during the call, for the host to cache.
	TabID *int64
	// SyncErr is the error from the sync pass that follows a compensating entry.
	// It never changes OK or Message.
	SyncErr error
	Message string
	Pending int
	OK      bool
}

// UndoOption configures an Undoer.
type UndoOption func(*Undoer)

// WithClock sets the time source for compensating entries.
func WithClock(now Clock) UndoOption {
	return func(u *Undoer) {
		u.now = now
	}
}

// WithIDGenerator sets how compensating entries get their ids.
func WithIDGenerator(newID IDGenerator) UndoOption {
	return func(u *Undoer) {
		u.newID = newID
	}
}

// Undoer reverses the most recently created ledger record.
type Undoer struct {
	ledger service.Ledger
	client service.SheetClient
	syncer *Syncer
	logger *slog.Logger
	now    Clock
	newID  IDGenerator
}

// NewUndoer creates an undo engine. syncer may be nil, in which case
// compensating entries wait for the next sync pass.
func NewUndoer(ledger service.Ledger, client service.SheetClient, syncer *Syncer, logger *slog.Logger, opts ...UndoOption) *Undoer {
	u := &Undoer{
		ledger: ledger,
		client: client,
		syncer: syncer,
		logger: loggerOrDefault(logger),
		now:    time.Now,
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UndoLast reverses the newest record. A pending record is deleted locally. A
// synced record is deleted from the sheet and then locally. When that is not
// possible a compensating entry with the negated amount is queued instead, so
// undo always succeeds unless the ledger itself fails.
func (u *Undoer) UndoLast(ctx context.Context, session model.Session) (UndoResult, error) {
	last, err := u.ledger.GetLastTransaction(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return UndoResult{OK: false, Message: MessageNothingToUndo, TabID: session.TabID}, nil
	}
	if err != nil {
		return UndoResult{}, fmt.Errorf("failed to load last transaction: %w", err)
	}

	if last.Status == model.StatusPending {
		if err := u.ledger.DeleteTransaction(ctx, last.ID); err != nil {
			return UndoResult{}, fmt.Errorf("failed to delete pending transaction: %w", err)
		}
		u.logger.Info("removed pending transaction", "id", last.ID)
		return u.finish(ctx, UndoResult{OK: true, Message: MessageRemovedPending, TabID: session.TabID})
	}

	tabID := session.TabID
	if last.Status == model.StatusSynced && session.Authenticated() {
		var removed bool
		removed, tabID = u.deleteRemote(ctx, session, last)
		if removed {
			if err := u.ledger.DeleteTransaction(ctx, last.ID); err != nil {
				return UndoResult{}, fmt.Errorf("failed to delete synced transaction: %w", err)
			}
			u.logger.Info("removed synced transaction", "id", last.ID, "row", last.SheetRow)
			return u.finish(ctx, UndoResult{OK: true, Message: MessageRemovedSynced, TabID: tabID})
		}
	}

	compensating := last.Compensate(u.newID(), u.now())
	if err := u.ledger.InsertTransaction(ctx, compensating); err != nil {
		return UndoResult{}, fmt.Errorf("failed to queue compensating transaction: %w", err)
	}
	u.logger.Info("queued compensating transaction", "id", compensating.ID, "reverses", last.ID)

	result := UndoResult{OK: true, Message: MessageCompensated, TabID: tabID}
	if session.CanSync() && u.syncer != nil {
		if _, syncErr := u.syncer.SyncPending(ctx, session.AccessToken, session.SheetID); syncErr != nil {
			u.logger.Warn("sync after undo failed", "error", syncErr)
			result.SyncErr = syncErr
		}
	}
	return u.finish(ctx, result)
}

// deleteRemote removes the record's row from the sheet. Failures are logged
// and reported as false so the caller falls back to a compensating entry.
func (u *Undoer) deleteRemote(ctx context.Context, session model.Session, record *model.TransactionRecord) (bool, *int64) {
	tabID := session.TabID
	if record.SheetID != "" && record.SheetID != session.SheetID {
		u.logger.Warn("last transaction was synced to a different sheet",
			"id", record.ID,
			"record_sheet_id", record.SheetID,
			"sheet_id", session.SheetID)
		return false, tabID
	}

	if tabID == nil {
		resolved, err := u.client.GetTabID(ctx, session.AccessToken, session.SheetID)
		if err != nil {
			u.logger.Warn("failed to resolve tab for undo", "error", err)
			return false, nil
		}
		tabID = resolved
	}

	if tabID == nil || record.SheetRow <= 1 {
		u.logger.Debug("row location unknown, compensating instead",
			"id", record.ID,
			"row", record.SheetRow,
			"tab_known", tabID != nil)
		return false, tabID
	}

	if err := u.client.DeleteRow(ctx, session.AccessToken, session.SheetID, *tabID, record.SheetRow); err != nil {
		u.logger.Warn("failed to delete row for undo",
			"id", record.ID,
			"row", record.SheetRow,
			"error", err)
		return false, tabID
	}
	return true, tabID
}

func (u *Undoer) finish(ctx context.Context, result UndoResult) (UndoResult, error) {
	pending, err := u.ledger.CountPending(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	result.Pending = pending
	return result, nil
}
