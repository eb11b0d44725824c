package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
)

// Settings keys.
const (
	SettingRecentCategories = "recentCategories"
	SettingOnboardingState  = "onboardingState"
	SettingSession          = "session"
)

// GetSetting returns the raw JSON stored under key, or common.ErrNotFound.
func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(key, "key"); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// PutSetting stores value under key, replacing any previous value.
func (s *SQLiteStorage) PutSetting(ctx context.Context, key, value string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Missing keys are ignored.
func (s *SQLiteStorage) DeleteSetting(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.GetSetting(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		slog.Warn("Ignoring unreadable setting", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *SQLiteStorage) putJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	return s.PutSetting(ctx, key, string(raw))
}

// storedOnboarding distinguishes a missing categories block from an empty one.
type storedOnboarding struct {
	Categories          *model.CategoryConfig `json:"categories"`
	SheetFolderID       string                `json:"sheetFolderId"`
	Accounts            []string              `json:"accounts"`
	AccountsConfirmed   bool                  `json:"accountsConfirmed"`
	CategoriesConfirmed bool                  `json:"categoriesConfirmed"`
}

// LoadOnboardingState returns the saved state, or defaults when none is stored.
func (s *SQLiteStorage) LoadOnboardingState(ctx context.Context) (model.OnboardingState, error) {
	state := model.DefaultOnboardingState()

	var stored storedOnboarding
	found, err := s.getJSON(ctx, SettingOnboardingState, &stored)
	if err != nil || !found {
		return state, err
	}

	state.SheetFolderID = stored.SheetFolderID
	if stored.Accounts != nil {
		state.Accounts = stored.Accounts
	}
	if stored.Categories != nil {
		state.Categories = model.CategoryConfig{
			Expense:  nonNil(stored.Categories.Expense),
			Income:   nonNil(stored.Categories.Income),
			Transfer: nonNil(stored.Categories.Transfer),
		}
	}
	state.AccountsConfirmed = stored.AccountsConfirmed
	state.CategoriesConfirmed = stored.CategoriesConfirmed
	return state, nil
}

// SaveOnboardingState persists the whole onboarding state.
func (s *SQLiteStorage) SaveOnboardingState(ctx context.Context, state model.OnboardingState) error {
	return s.putJSON(ctx, SettingOnboardingState, state)
}

// LoadRecentCategories returns the MRU lists, empty when none are stored.
func (s *SQLiteStorage) LoadRecentCategories(ctx context.Context) (model.RecentCategories, error) {
	var recents model.RecentCategories
	found, err := s.getJSON(ctx, SettingRecentCategories, &recents)
	if err != nil || !found {
		return model.RecentCategories{}, err
	}
	return recents, nil
}

// TouchRecentCategory records a use of category and returns the updated lists.
func (s *SQLiteStorage) TouchRecentCategory(ctx context.Context, t model.TransactionType, category string) (model.RecentCategories, error) {
	current, err := s.LoadRecentCategories(ctx)
	if err != nil {
		return current, err
	}
	next := current.Touch(t, category)
	if err := s.putJSON(ctx, SettingRecentCategories, next); err != nil {
		return current, err
	}
	return next, nil
}

// LoadSession returns the persisted sheet linkage; zero when disconnected.
func (s *SQLiteStorage) LoadSession(ctx context.Context) (model.StoredSession, error) {
	var session model.StoredSession
	found, err := s.getJSON(ctx, SettingSession, &session)
	if err != nil || !found {
		return model.StoredSession{}, err
	}
	return session, nil
}

// SaveSession persists the sheet linkage.
func (s *SQLiteStorage) SaveSession(ctx context.Context, session model.StoredSession) error {
	return s.putJSON(ctx, SettingSession, session)
}

// ClearSession forgets the sheet linkage.
func (s *SQLiteStorage) ClearSession(ctx context.Context) error {
	return s.DeleteSetting(ctx, SettingSession)
}
