package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncProgress(t *testing.T) {
	var output bytes.Buffer
	progress := NewSyncProgress(&output)

	progress.Report(0, 0)
	assert.Empty(t, output.String())

	progress.Report(1, 3)
	progress.Report(1, 3)
	progress.Report(3, 3)
	assert.Equal(t, 3, progress.Done())
	assert.Contains(t, output.String(), "Syncing entries")

	progress.Finish()
}

func TestSyncProgress_FinishEarly(t *testing.T) {
	var output bytes.Buffer
	progress := NewSyncProgress(&output)

	progress.Finish()
	progress.Report(1, 4)
	progress.Finish()
	assert.Equal(t, 1, progress.Done())
}
