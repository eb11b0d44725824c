package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
)

const transactionColumns = `id, type, amount, currency, account, for_label, category, tags,
	date, note, status, sheet_row, sheet_id, error, created_at, updated_at`

// InsertTransaction adds a new record to the ledger.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, record *model.TransactionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	tags, err := json.Marshal(nonNil(record.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = record.CreatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		string(record.Type),
		record.Amount,
		record.Currency,
		record.Account,
		record.For,
		record.Category,
		string(tags),
		record.Date,
		record.Note,
		string(record.Status),
		nullInt(record.SheetRow),
		nullString(record.SheetID),
		nullString(record.Error),
		formatTime(record.CreatedAt),
		formatTime(updatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: transaction %s", common.ErrDuplicateEntry, record.ID)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction applies a partial patch to one record and refreshes updated_at.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, id string, patch model.TransactionPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validatePatch(patch); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now())}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.SheetRow != nil {
		sets = append(sets, "sheet_row = ?")
		args = append(args, nullInt(*patch.SheetRow))
	}
	if patch.SheetID != nil {
		sets = append(sets, "sheet_id = ?")
		args = append(args, nullString(*patch.SheetID))
	}
	if patch.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullString(*patch.Error))
	}
	args = append(args, id)

	// #nosec G202 -- column names are fixed above, values are bound
	result, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes a record. Missing ids are ignored.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// GetTransaction fetches one record by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	record, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetPendingTransactions returns pending records in creation order.
func (s *SQLiteStorage) GetPendingTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = ?
		ORDER BY created_at ASC, seq ASC`, string(model.StatusPending))
}

// GetLastTransaction returns the most recently created record.
// Records created in the same instant are ordered by insertion.
func (s *SQLiteStorage) GetLastTransaction(ctx context.Context) (*model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`)
	record, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecentTransactions returns up to limit records, newest first.
func (s *SQLiteStorage) ListRecentTransactions(ctx context.Context, limit int) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`, limit)
}

// CountPending returns the number of records waiting to sync.
func (s *SQLiteStorage) CountPending(ctx context.Context) (int, error) {
	return s.countByStatus(ctx, model.StatusPending)
}

// CountByStatus returns the number of records in the given state.
func (s *SQLiteStorage) CountByStatus(ctx context.Context, status model.SyncStatus) (int, error) {
	return s.countByStatus(ctx, status)
}

func (s *SQLiteStorage) countByStatus(ctx context.Context, status model.SyncStatus) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateStatus(status); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.TransactionRecord
	for rows.Next() {
		record, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.TransactionRecord, error) {
	var (
		record    model.TransactionRecord
		txType    string
		status    string
		tags      string
		sheetRow  sql.NullInt64
		sheetID   sql.NullString
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&record.ID,
		&txType,
		&record.Amount,
		&record.Currency,
		&record.Account,
		&record.For,
		&record.Category,
		&tags,
		&record.Date,
		&record.Note,
		&status,
		&sheetRow,
		&sheetID,
		&errMsg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	record.Type = model.TransactionType(txType)
	record.Status = model.SyncStatus(status)
	record.SheetRow = int(sheetRow.Int64)
	record.SheetID = sheetID.String
	record.Error = errMsg.String

	if tags != "" {
		if jsonErr := json.Unmarshal([]byte(tags), &record.Tags); jsonErr != nil {
			return nil, fmt.Errorf("%w: tags for %s: %v", ErrCorruptRecord, record.ID, jsonErr)
		}
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &record, nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v > 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
