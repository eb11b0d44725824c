package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/config"
	"github.com/Veraticus/sheetlog/internal/connectivity"
	"github.com/Veraticus/sheetlog/internal/engine"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
	"github.com/Veraticus/sheetlog/internal/sheets"
	"github.com/Veraticus/sheetlog/internal/storage"
)

// app bundles everything a command needs. Commands build one per run.
type app struct {
	store        *storage.SQLiteStorage
	client       service.SheetClient
	probe        connectivity.Probe
	logger       *slog.Logger
	out          io.Writer
	sheetsConfig *sheets.Config
	connectivity connectivity.Config
	tokenFn      func(ctx context.Context) (string, error)
}

func newApp(ctx context.Context, out io.Writer) (*app, error) {
	sheetsConfig, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, err
	}
	connConfig, err := config.LoadConnectivityConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := slog.Default()
	client, err := sheets.NewClient(*sheetsConfig, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &app{
		store:        store,
		client:       client,
		probe:        connectivity.NewHTTPProbe(connConfig.ProbeURL, connConfig.Timeout),
		logger:       logger,
		out:          out,
		sheetsConfig: sheetsConfig,
		connectivity: connConfig,
	}
	a.tokenFn = a.storedToken
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) syncer(opts ...engine.SyncerOption) *engine.Syncer {
	return engine.NewSyncer(a.store, a.client, a.logger, opts...)
}

func (a *app) undoer() *engine.Undoer {
	return engine.NewUndoer(a.store, a.client, a.syncer(), a.logger)
}

func (a *app) onboarding() *engine.Onboarding {
	return engine.NewOnboarding(a.store, a.client, a.logger)
}

// storedToken returns a fresh access token from the token file, or "" when
// the user never signed in.
func (a *app) storedToken(ctx context.Context) (string, error) {
	oauthConfig, err := a.sheetsConfig.OAuth2()
	if err != nil {
		if _, statErr := os.Stat(a.sheetsConfig.TokenFile); statErr != nil {
			return "", nil
		}
		return "", err
	}

	token, err := sheets.StoredToken(ctx, oauthConfig)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// online runs a single connectivity probe.
func (a *app) online(ctx context.Context) bool {
	err := a.probe.Check(ctx)
	if err != nil {
		a.logger.Debug("Connectivity probe failed", "error", err)
	}
	return err == nil
}

// session assembles the credentials for one command. A refresh failure is
// treated as signed out after the stored credentials are cleared.
func (a *app) session(ctx context.Context, online bool) (model.Session, error) {
	stored, err := a.store.LoadSession(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	session := model.Session{
		SheetID: stored.SheetID,
		TabID:   stored.TabID,
		Online:  online,
	}
	if !online {
		return session, nil
	}

	token, err := a.tokenFn(ctx)
	if err != nil {
		a.logger.Warn("Stored Google credentials are unusable", "error", err)
		return session, nil
	}
	session.AccessToken = token
	return session, nil
}

// ensureSheet links the ledger to a spreadsheet when the session has none.
func (a *app) ensureSheet(ctx context.Context, session model.Session) (model.Session, error) {
	if session.AccessToken == "" || session.SheetID != "" {
		return session, nil
	}

	state, err := a.store.LoadOnboardingState(ctx)
	if err != nil {
		return session, fmt.Errorf("failed to load onboarding state: %w", err)
	}

	sheetID, err := a.client.EnsureSheet(ctx, session.AccessToken, state.SheetFolderID)
	if err != nil {
		return session, a.remoteFailure(ctx, err)
	}

	session.SheetID = sheetID
	session.TabID = nil
	if err := a.store.SaveSession(ctx, model.StoredSession{SheetID: sheetID}); err != nil {
		return session, fmt.Errorf("failed to save session: %w", err)
	}
	a.logger.Info("Linked spreadsheet", "sheet_id", sheetID)
	return session, nil
}

// cacheTabID stores a tab id resolved during an operation.
func (a *app) cacheTabID(ctx context.Context, session model.Session, tabID *int64) {
	if tabID == nil || session.SheetID == "" {
		return
	}
	if session.TabID != nil && *session.TabID == *tabID {
		return
	}
	if err := a.store.SaveSession(ctx, model.StoredSession{SheetID: session.SheetID, TabID: tabID}); err != nil {
		a.logger.Warn("Failed to cache tab id", "error", err)
	}
}

// remoteFailure turns a Sheets/Drive error into the short user-facing
// message and clears stored credentials when the classifier says so.
func (a *app) remoteFailure(ctx context.Context, err error) error {
	verdict := sheets.ClassifyError(err)
	switch {
	case verdict.ShouldClearAuth:
		if clearErr := a.signOut(ctx); clearErr != nil {
			a.logger.Warn("Failed to clear credentials", "error", clearErr)
		}
	case verdict.Status == http.StatusNotFound:
		// The next signed-in run links a fresh spreadsheet.
		if clearErr := a.store.ClearSession(ctx); clearErr != nil {
			a.logger.Warn("Failed to forget missing sheet", "error", clearErr)
		}
	}
	return common.NewUserError(verdict.Message, err)
}

// signOut forgets the token and the sheet linkage. Local entries stay.
func (a *app) signOut(ctx context.Context) error {
	if err := sheets.DeleteToken(a.sheetsConfig.TokenFile); err != nil {
		return err
	}
	return a.store.ClearSession(ctx)
}

// userMessage returns the short text of a user error, or err's text.
func userMessage(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
