package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
	"github.com/Veraticus/sheetlog/internal/sheets"
)

// SyncLeaseName names the ledger lease held for the duration of a pass.
const SyncLeaseName = "sync"

// syncLeaseTTL bounds how long a crashed process can block other passes.
// The lease is renewed after every record.
const syncLeaseTTL = 2 * time.Minute

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Synced    int  // records confirmed remotely during this pass
	Failed    int  // records whose append failed
	Remaining int  // pending records left after the pass
	Skipped   bool // another pass was already running
}

// ProgressFunc is called after each record is processed.
type ProgressFunc func(done, total int)

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithProgress reports per-record progress to fn.
func WithProgress(fn ProgressFunc) SyncerOption {
	return func(s *Syncer) {
		s.progress = fn
	}
}

// WithLease overrides the lease used to exclude passes in other processes.
func WithLease(lease service.Lease) SyncerOption {
	return func(s *Syncer) {
		s.lease = lease
	}
}

// Syncer drains pending ledger records into the spreadsheet, oldest first.
// At most one pass runs at a time; overlapping calls return immediately.
// When the ledger is also a service.Lease, the guard covers every process
// sharing that ledger.
type Syncer struct {
	ledger   service.Ledger
	client   service.SheetClient
	lease    service.Lease
	logger   *slog.Logger
	progress ProgressFunc
	owner    string
	running  atomic.Bool
}

// NewSyncer creates a sync engine.
func NewSyncer(ledger service.Ledger, client service.SheetClient, logger *slog.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		ledger: ledger,
		client: client,
		logger: loggerOrDefault(logger),
		owner:  NewID(),
	}
	if lease, ok := ledger.(service.Lease); ok {
		s.lease = lease
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a pass is in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// SyncPending appends every pending record to the sheet in creation order.
//
// A record that succeeds becomes synced with its row. A failure is recorded on
// the record: it stays pending when retryable and becomes error otherwise.
// Auth and retryable failures stop the pass and are returned so the caller can
// clear credentials or back off; other failures only affect their own record.
func (s *Syncer) SyncPending(ctx context.Context, token, sheetID string) (SyncResult, error) {
	if token == "" || sheetID == "" {
		return SyncResult{}, common.ErrNotSignedIn
	}

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("sync already running, skipping")
		return SyncResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	var result SyncResult

	held, err := s.holdLease(ctx)
	if err != nil {
		return result, err
	}
	if !held {
		s.logger.Debug("sync running in another process, skipping")
		return SyncResult{Skipped: true}, nil
	}
	defer s.releaseLease(ctx)

	pending, err := s.ledger.GetPendingTransactions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	s.logger.Info("starting sync", "pending", len(pending), "sheet_id", sheetID)

	remote, err := s.remoteIDs(ctx, token, sheetID)
	if err != nil {
		result.Remaining = len(pending)
		return result, err
	}

	var stopErr error
	for i := range pending {
		record := &pending[i]

		if i > 0 {
			held, err := s.holdLease(ctx)
			if err != nil {
				return result, err
			}
			if !held {
				s.logger.Warn("sync lease taken over, stopping pass", "id", record.ID)
				break
			}
		}

		if row, ok := remote[record.ID]; ok {
			// Appended by an earlier pass that never recorded the outcome.
			if err := s.ledger.UpdateTransaction(ctx, record.ID, model.SyncedPatch(sheetID, row)); err != nil {
				return result, fmt.Errorf("failed to mark transaction %s synced: %w", record.ID, err)
			}
			s.logger.Info("transaction already in sheet", "id", record.ID, "row", row)
			result.Synced++
			s.report(i+1, len(pending))
			continue
		}

		row, appendErr := s.client.AppendRow(ctx, token, sheetID, record)
		if appendErr == nil {
			if err := s.ledger.UpdateTransaction(ctx, record.ID, model.SyncedPatch(sheetID, row)); err != nil {
				return result, fmt.Errorf("failed to mark transaction %s synced: %w", record.ID, err)
			}
			s.logger.Debug("transaction synced", "id", record.ID, "row", row)
			result.Synced++
			s.report(i+1, len(pending))
			continue
		}

		verdict := sheets.ClassifyError(appendErr)
		if err := s.ledger.UpdateTransaction(ctx, record.ID, model.FailedPatch(verdict.Message, verdict.Retryable)); err != nil {
			return result, fmt.Errorf("failed to record sync failure for %s: %w", record.ID, err)
		}
		result.Failed++
		s.report(i+1, len(pending))

		s.logger.Warn("failed to sync transaction",
			"id", record.ID,
			"status", verdict.Status,
			"retryable", verdict.Retryable,
			"error", appendErr)

		if verdict.ShouldClearAuth || verdict.Retryable {
			stopErr = appendErr
			break
		}
	}

	remaining, err := s.ledger.CountPending(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	result.Remaining = remaining

	s.logger.Info("sync finished",
		"synced", result.Synced,
		"failed", result.Failed,
		"remaining", result.Remaining)

	if stopErr != nil {
		return result, stopErr
	}
	return result, nil
}

// remoteIDs reads the ids already present in the sheet. Only auth and
// transient failures are fatal; anything else disables the check for this pass.
func (s *Syncer) remoteIDs(ctx context.Context, token, sheetID string) (map[string]int, error) {
	ids, err := s.client.ReadTransactionIDs(ctx, token, sheetID)
	if err == nil {
		return ids, nil
	}

	verdict := sheets.ClassifyError(err)
	if verdict.ShouldClearAuth || verdict.Retryable {
		s.logger.Warn("sync aborted before appending", "error", err)
		return nil, err
	}
	s.logger.Warn("could not read remote ids, appending without duplicate check", "error", err)
	return nil, nil
}

// holdLease takes or renews the cross-process lease. Without a lease store
// the in-process flag is the only guard.
func (s *Syncer) holdLease(ctx context.Context) (bool, error) {
	if s.lease == nil {
		return true, nil
	}
	held, err := s.lease.AcquireLease(ctx, SyncLeaseName, s.owner, syncLeaseTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	return held, nil
}

func (s *Syncer) releaseLease(ctx context.Context) {
	if s.lease == nil {
		return
	}
	if err := s.lease.ReleaseLease(context.WithoutCancel(ctx), SyncLeaseName, s.owner); err != nil {
		s.logger.Warn("failed to release sync lease", "error", err)
	}
}

func (s *Syncer) report(done, total int) {
	if s.progress != nil {
		s.progress(done, total)
	}
}
