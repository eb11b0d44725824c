package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/sheetlog/internal/model"
)

// ErrNoInput is returned when input ends before a valid answer.
var ErrNoInput = errors.New("input terminated")

// Prompter asks for the parts of an entry that were not given as flags.
type Prompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// ChooseCategory lists recents first, then the configured categories, and
// accepts either a number from the list or a free-form name.
func (p *Prompter) ChooseCategory(ctx context.Context, txType model.TransactionType, categories, recents []string) (string, error) {
	options := mergeOptions(recents, categories)

	if _, err := fmt.Fprintln(p.writer, FormatInfo(fmt.Sprintf("Categories for %s:", txType))); err != nil {
		return "", fmt.Errorf("failed to write category header: %w", err)
	}
	for i, option := range options {
		label := option
		if i < len(recents) {
			label += " " + SubtleStyle.Render("(recent)")
		}
		if _, err := fmt.Fprintf(p.writer, "  %2d. %s\n", i+1, label); err != nil {
			slog.Warn("Failed to write category option", "error", err)
		}
	}

	for {
		input, err := p.ask(ctx, "Category (number or name)")
		if err != nil {
			return "", err
		}
		if input == "" {
			p.complain("Category cannot be empty. Please try again.")
			continue
		}
		if n, convErr := strconv.Atoi(input); convErr == nil {
			if n < 1 || n > len(options) {
				p.complain(fmt.Sprintf("Pick a number between 1 and %d.", len(options)))
				continue
			}
			return options[n-1], nil
		}
		for _, option := range options {
			if strings.EqualFold(option, input) {
				return option, nil
			}
		}
		return input, nil
	}
}

// Confirm asks a yes/no question. Empty input takes the default.
func (p *Prompter) Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	suffix := " [y/N]"
	if defaultYes {
		suffix = " [Y/n]"
	}
	for {
		input, err := p.ask(ctx, prompt+suffix)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(input) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.complain("Invalid choice. Please answer y or n.")
	}
}

// PromptList reads a comma-separated list and normalizes it.
func (p *Prompter) PromptList(ctx context.Context, prompt string, current []string) ([]string, error) {
	if len(current) > 0 {
		prompt += " " + SubtleStyle.Render("["+strings.Join(current, ", ")+"]")
	}
	input, err := p.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if input == "" {
		return model.NormalizeStringList(current), nil
	}
	return model.NormalizeStringList(strings.Split(input, ",")), nil
}

func (p *Prompter) ask(ctx context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	input, err := p.reader.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", ErrNoInput
	}
	return input, err
}

func (p *Prompter) complain(message string) {
	if _, err := fmt.Fprintln(p.writer, FormatError(message)); err != nil {
		slog.Warn("Failed to write error message", "error", err)
	}
}

// mergeOptions returns recents followed by the remaining categories,
// without case-insensitive duplicates.
func mergeOptions(recents, categories []string) []string {
	return model.NormalizeStringList(append(append([]string{}, recents...), categories...))
}
