package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_InsertAndGetTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 12, 0, 0, 123456789, time.UTC)
	record := createTestRecord("txn-1", base, 0)

	require.NoError(t, store.InsertTransaction(ctx, record))

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, model.TypeExpense, got.Type)
	assert.True(t, record.Amount.Equal(got.Amount), "amount %s != %s", got.Amount, record.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "Cash", got.Account)
	assert.Equal(t, "Lunch", got.For)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, "2024-03-15T12:00", got.Date)
	assert.Equal(t, "note", got.Note)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Zero(t, got.SheetRow)
	assert.Empty(t, got.SheetID)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, base.Equal(got.UpdatedAt))

	err = store.InsertTransaction(ctx, record)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	_, err = store.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_InsertValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate  func(*model.TransactionRecord)
		wantErr error
		name    string
	}{
		{name: "missing id", mutate: func(r *model.TransactionRecord) { r.ID = "" }, wantErr: ErrInvalidTransaction},
		{name: "bad type", mutate: func(r *model.TransactionRecord) { r.Type = "loan" }, wantErr: ErrInvalidTransaction},
		{name: "missing category", mutate: func(r *model.TransactionRecord) { r.Category = " " }, wantErr: ErrInvalidTransaction},
		{name: "bad status", mutate: func(r *model.TransactionRecord) { r.Status = "queued" }, wantErr: ErrInvalidStatus},
		{name: "zero created", mutate: func(r *model.TransactionRecord) { r.CreatedAt = time.Time{} }, wantErr: ErrInvalidTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := createTestRecord("txn-v", time.Now(), 0)
			tt.mutate(record)
			assert.ErrorIs(t, store.InsertTransaction(ctx, record), tt.wantErr)
		})
	}

	assert.ErrorIs(t, store.InsertTransaction(ctx, nil), ErrNilParameter)
}

func TestSQLiteStorage_UpdateTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("txn-1", base, 0)))

	later := base.Add(time.Hour)
	store.now = func() time.Time { return later }

	t.Run("failed retryable keeps pending with message", func(t *testing.T) {
		require.NoError(t, store.UpdateTransaction(ctx, "txn-1", model.FailedPatch("try later", true)))

		got, err := store.GetTransaction(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, "try later", got.Error)
		assert.True(t, later.Equal(got.UpdatedAt))
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("synced sets linkage and clears error", func(t *testing.T) {
		require.NoError(t, store.UpdateTransaction(ctx, "txn-1", model.SyncedPatch("sheet-1", 5)))

		got, err := store.GetTransaction(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusSynced, got.Status)
		assert.Equal(t, 5, got.SheetRow)
		assert.Equal(t, "sheet-1", got.SheetID)
		assert.Empty(t, got.Error)
	})

	t.Run("missing id", func(t *testing.T) {
		err := store.UpdateTransaction(ctx, "nope", model.FailedPatch("x", false))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		bad := model.SyncStatus("lost")
		err := store.UpdateTransaction(ctx, "txn-1", model.TransactionPatch{Status: &bad})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestSQLiteStorage_DeleteTransactionIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("txn-1", time.Now(), 0)))

	require.NoError(t, store.DeleteTransaction(ctx, "txn-1"))
	require.NoError(t, store.DeleteTransaction(ctx, "txn-1"))
	require.NoError(t, store.DeleteTransaction(ctx, "never-existed"))

	_, err := store.GetTransaction(ctx, "txn-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_PendingQueueOrder(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Insert out of creation order; two records share an instant.
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("c", base, 2)))
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("a", base, 0)))
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("b1", base, 1)))
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("b2", base, 1)))
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("done", base, 3)))
	require.NoError(t, store.UpdateTransaction(ctx, "done", model.SyncedPatch("sheet", 2)))

	pending, err := store.GetPendingTransactions(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)

	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	synced, err := store.CountByStatus(ctx, model.StatusSynced)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestSQLiteStorage_GetLastTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetLastTransaction(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("late", base, 5)))
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("early", base, 1)))

	last, err := store.GetLastTransaction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", last.ID)

	// A record created in the same instant but inserted later wins the tie.
	require.NoError(t, store.InsertTransaction(ctx, createTestRecord("late-2", base, 5)))
	last, err = store.GetLastTransaction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late-2", last.ID)

	// Status does not matter.
	require.NoError(t, store.UpdateTransaction(ctx, "late-2", model.FailedPatch("bad", false)))
	last, err = store.GetLastTransaction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late-2", last.ID)
	assert.Equal(t, model.StatusError, last.Status)
}

func TestSQLiteStorage_NegativeAmountRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	original := createTestRecord("orig", time.Now(), 0)
	original.Amount = decimal.RequireFromString("19.99")
	comp := original.Compensate("comp", time.Now().Add(time.Second))

	require.NoError(t, store.InsertTransaction(ctx, comp))

	got, err := store.GetTransaction(ctx, "comp")
	require.NoError(t, err)
	assert.Equal(t, "-19.99", got.Amount.String())
	assert.Equal(t, "UNDO: note", got.Note)
}

func TestSQLiteStorage_ListRecentTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.InsertTransaction(ctx, createTestRecord(id, base, i)))
	}

	recent, err := store.ListRecentTransactions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)
}
