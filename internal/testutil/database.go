// Package testutil provides test helpers shared by the ledger packages:
// an isolated in-memory database and a fluent builder for transaction records.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory database that is closed
// when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.Seed(testutil.NewTransaction("a").Build())
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Seed inserts records, failing the test on any error.
func (db *TestDB) Seed(records ...*model.TransactionRecord) {
	db.t.Helper()
	for _, record := range records {
		if err := db.Storage.InsertTransaction(context.Background(), record); err != nil {
			db.t.Fatalf("failed to seed transaction %q: %v", record.ID, err)
		}
	}
}

// Get returns a record by id, failing the test when it is missing.
func (db *TestDB) Get(id string) *model.TransactionRecord {
	db.t.Helper()
	record, err := db.Storage.GetTransaction(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %q: %v", id, err)
	}
	return record
}

// Pending returns the pending count, failing the test on error.
func (db *TestDB) Pending() int {
	db.t.Helper()
	count, err := db.Storage.CountPending(context.Background())
	if err != nil {
		db.t.Fatalf("failed to count pending: %v", err)
	}
	return count
}

// All returns every record, newest first.
func (db *TestDB) All() []model.TransactionRecord {
	db.t.Helper()
	records, err := db.Storage.ListRecentTransactions(context.Background(), 1000)
	if err != nil {
		db.t.Fatalf("failed to list transactions: %v", err)
	}
	return records
}
