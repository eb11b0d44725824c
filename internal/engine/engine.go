// Package engine implements the offline-first sync core: draining the local
// ledger into the spreadsheet, undoing the latest entry, and reconciling the
// onboarding configuration with the copy kept in the sheet.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Messages returned by UndoLast.
const (
	MessageNothingToUndo  = "Nothing to undo"
	MessageRemovedPending = "Removed pending entry"
	MessageRemovedSynced  = "Removed last synced entry"
	MessageCompensated    = "Undo queued as compensating entry"
)

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator returns a new unique record id.
type IDGenerator func() string

// NewID returns a random record id.
func NewID() string {
	return uuid.NewString()
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
