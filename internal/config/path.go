// Package config resolves sheetlog settings from viper and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the per-user config and data directories.
const AppName = "sheetlog"

// ExpandPath expands ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// Dir returns ~/.config/sheetlog, falling back to the working directory
// when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultDatabasePath is where the ledger lives unless database.path is set.
func DefaultDatabasePath() string {
	return filepath.Join(Dir(), "sheetlog.db")
}

// DefaultTokenFile is where the OAuth token is stored unless sheets.token_file is set.
func DefaultTokenFile() string {
	return filepath.Join(Dir(), "token.json")
}
