package config

import (
	"os"

	"github.com/Veraticus/sheetlog/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or SHEETLOG_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	if v := viper.GetString("sheets.client_id"); v != "" {
		config.ClientID = v
	}
	if v := viper.GetString("sheets.client_secret"); v != "" {
		config.ClientSecret = v
	}
	if v := viper.GetString("sheets.token_file"); v != "" {
		config.TokenFile = ExpandPath(v)
	}
	if v := viper.GetString("sheets.spreadsheet_name"); v != "" {
		config.SpreadsheetName = v
	}
	if v := viper.GetString("sheets.source"); v != "" {
		config.Source = v
	}

	config.LoadFromEnv()
	if config.TokenFile == "" {
		config.TokenFile = DefaultTokenFile()
	} else {
		config.TokenFile = ExpandPath(config.TokenFile)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DatabasePath returns the ledger location from database.path or SHEETLOG_DB.
func DatabasePath() string {
	if v := viper.GetString("database.path"); v != "" {
		return ExpandPath(v)
	}
	if v := os.Getenv("SHEETLOG_DB"); v != "" {
		return ExpandPath(v)
	}
	return DefaultDatabasePath()
}
