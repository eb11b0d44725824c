package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/model"
	"github.com/Veraticus/sheetlog/internal/service"
)

// ErrPushFailed marks an ApplyUpdate error raised after the state was saved.
var ErrPushFailed = errors.New("failed to push onboarding to sheet")

// HydrateResult is the outcome of HydrateFromRemote.
type HydrateResult struct {
	State             model.OnboardingState
	Changed           bool
	AccountsChanged   bool
	CategoriesChanged bool
}

// UpdateParams are the inputs to ApplyUpdate.
type UpdateParams struct {
	Current model.OnboardingState
	Updates model.OnboardingUpdate
	Session model.Session
}

// Onboarding reconciles the local accounts and categories with the config
// block stored in the sheet. Confirmed local sections are never overwritten.
type Onboarding struct {
	store  service.SettingsStore
	client service.SheetClient
	logger *slog.Logger
}

// NewOnboarding creates an onboarding merge engine.
func NewOnboarding(store service.SettingsStore, client service.SheetClient, logger *slog.Logger) *Onboarding {
	return &Onboarding{
		store:  store,
		client: client,
		logger: loggerOrDefault(logger),
	}
}

// HydrateFromRemote fills unconfirmed sections of current from the sheet's
// config block and persists the result when anything changed.
func (o *Onboarding) HydrateFromRemote(ctx context.Context, token, sheetID string, current model.OnboardingState) (HydrateResult, error) {
	result := HydrateResult{State: current}
	if token == "" || sheetID == "" {
		return result, common.ErrNotSignedIn
	}

	config, err := o.client.ReadConfigBlock(ctx, token, sheetID)
	if err != nil {
		return result, fmt.Errorf("failed to read sheet configuration: %w", err)
	}
	if config == nil {
		return result, nil
	}

	next := current.Clone()

	if !current.AccountsConfirmed && len(config.Accounts) > 0 {
		next.Accounts = append([]string{}, config.Accounts...)
		next.AccountsConfirmed = true
		result.AccountsChanged = true
	}

	if !current.CategoriesConfirmed && config.Categories != nil && config.Categories.HasAny() {
		next.Categories = config.Categories.Clone()
		// Partial remote lists fill the gaps but leave the section open for review.
		next.CategoriesConfirmed = next.Categories.HasAll()
		result.CategoriesChanged = true
	}

	result.Changed = result.AccountsChanged || result.CategoriesChanged
	if !result.Changed {
		return result, nil
	}

	if err := o.store.SaveOnboardingState(ctx, next); err != nil {
		return result, fmt.Errorf("failed to save onboarding state: %w", err)
	}
	result.State = next

	o.logger.Info("hydrated onboarding from sheet",
		"accounts", result.AccountsChanged,
		"categories", result.CategoriesChanged)
	return result, nil
}

// ApplyUpdate merges p.Updates into p.Current and persists the result. When
// the session can sync, confirmed sections touched by the update are pushed
// to the sheet afterwards. A push failure is returned together with the
// already persisted state; the caller decides whether to clear credentials.
func (o *Onboarding) ApplyUpdate(ctx context.Context, p UpdateParams) (model.OnboardingState, error) {
	next := p.Updates.Apply(p.Current)

	if err := o.store.SaveOnboardingState(ctx, next); err != nil {
		return p.Current, fmt.Errorf("failed to save onboarding state: %w", err)
	}

	if !p.Session.CanSync() {
		return next, nil
	}

	push := PushPlan(p.Updates, next)
	if push.Accounts == nil && push.Categories == nil {
		return next, nil
	}

	if err := o.client.WriteConfigBlock(ctx, p.Session.AccessToken, p.Session.SheetID, push); err != nil {
		return next, fmt.Errorf("%w: %w", ErrPushFailed, err)
	}

	o.logger.Info("pushed onboarding to sheet",
		"accounts", push.Accounts != nil,
		"categories", push.Categories != nil)
	return next, nil
}

// PushPlan decides which sections of next belong in the sheet after update.
// A section is pushed only when the update touched it and it is confirmed.
// Categories additionally need all three lists non-empty after normalization.
func PushPlan(update model.OnboardingUpdate, next model.OnboardingState) model.SheetConfig {
	var plan model.SheetConfig

	if update.TouchesAccounts() && next.AccountsConfirmed {
		if accounts := model.NormalizeStringList(next.Accounts); len(accounts) > 0 {
			plan.Accounts = accounts
		}
	}

	if update.TouchesCategories() && next.CategoriesConfirmed {
		if categories := next.Categories.Normalize(); categories.HasAll() {
			plan.Categories = &categories
		}
	}

	return plan
}
