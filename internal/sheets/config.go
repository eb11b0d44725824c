// Package sheets provides the Google Sheets client the ledger syncs into.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
)

// Config holds the configuration for the Google Sheets client.
type Config struct {
	ClientID        string
	ClientSecret    string
	TokenFile       string
	SpreadsheetName string
	Source          string // written to the Source column of every row
	SheetsEndpoint  string // overrides the Sheets API base URL
	DriveEndpoint   string // overrides the Drive API base URL
	RetryAttempts   int
	RetryDelay      time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName: DefaultSpreadsheetName,
		Source:          "CLI",
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}
}

// LoadFromEnv fills unset fields from GOOGLE_SHEETS_* environment variables.
func (c *Config) LoadFromEnv() {
	if c.ClientID == "" {
		c.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		c.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if c.TokenFile == "" {
		c.TokenFile = os.Getenv("GOOGLE_SHEETS_TOKEN_FILE")
	}
	if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" && c.SpreadsheetName == DefaultSpreadsheetName {
		c.SpreadsheetName = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SpreadsheetName == "" {
		return fmt.Errorf("%w: spreadsheet name cannot be empty", common.ErrInvalidConfig)
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts cannot be negative", common.ErrInvalidConfig)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", common.ErrInvalidConfig)
	}

	return nil
}

// OAuth2 returns the OAuth2 settings, failing when the client credentials are missing.
func (c *Config) OAuth2() (OAuth2Config, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return OAuth2Config{}, fmt.Errorf("%w: Google OAuth client id and secret are required", common.ErrMissingConfig)
	}
	return OAuth2Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenFile:    c.TokenFile,
	}, nil
}
