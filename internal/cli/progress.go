package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// SyncProgress draws a progress bar for a sync pass. The bar is created on
// the first report, once the total is known.
type SyncProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	done   int
}

// NewSyncProgress creates a progress reporter writing to writer.
func NewSyncProgress(writer io.Writer) *SyncProgress {
	return &SyncProgress{writer: writer}
}

// Report has the signature of engine.ProgressFunc.
func (p *SyncProgress) Report(done, total int) {
	if total == 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Syncing entries...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprintln(p.writer); err != nil {
					slog.Warn("Failed to write newline after progress bar", "error", err)
				}
			}),
		)
	}
	if done <= p.done {
		return
	}
	if err := p.bar.Add(done - p.done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
	p.done = done
}

// Done reports how many entries the bar has counted.
func (p *SyncProgress) Done() int {
	return p.done
}

// Finish completes a bar that stopped early, e.g. on an auth failure.
func (p *SyncProgress) Finish() {
	if p.bar == nil || p.bar.IsFinished() {
		return
	}
	if err := p.bar.Exit(); err != nil {
		slog.Warn("Failed to close progress bar", "error", err)
	}
}
