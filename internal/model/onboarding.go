package model

import "strings"

// CategoryConfig holds the category names offered for each transaction type.
type CategoryConfig struct {
	Expense  []string `json:"expense"`
	Income   []string `json:"income"`
	Transfer []string `json:"transfer"`
}

// DefaultCategories returns the built-in category lists.
func DefaultCategories() CategoryConfig {
	return CategoryConfig{
		Expense:  []string{"Food", "Transport", "Rent", "Utilities", "Health", "Shopping", "Entertainment", "Other"},
		Income:   []string{"Salary", "Bonus", "Gift", "Interest", "Other"},
		Transfer: []string{"Savings", "Invest", "Credit Card", "Other"},
	}
}

// ForType returns the list for a transaction type.
func (c CategoryConfig) ForType(t TransactionType) []string {
	switch t {
	case TypeExpense:
		return c.Expense
	case TypeIncome:
		return c.Income
	case TypeTransfer:
		return c.Transfer
	}
	return nil
}

// WithType returns a copy of c with the list for t replaced.
func (c CategoryConfig) WithType(t TransactionType, values []string) CategoryConfig {
	next := c.Clone()
	switch t {
	case TypeExpense:
		next.Expense = append([]string(nil), values...)
	case TypeIncome:
		next.Income = append([]string(nil), values...)
	case TypeTransfer:
		next.Transfer = append([]string(nil), values...)
	}
	return next
}

// Clone returns a deep copy.
func (c CategoryConfig) Clone() CategoryConfig {
	return CategoryConfig{
		Expense:  copyStrings(c.Expense),
		Income:   copyStrings(c.Income),
		Transfer: copyStrings(c.Transfer),
	}
}

// Normalize applies NormalizeStringList to every list.
func (c CategoryConfig) Normalize() CategoryConfig {
	return CategoryConfig{
		Expense:  NormalizeStringList(c.Expense),
		Income:   NormalizeStringList(c.Income),
		Transfer: NormalizeStringList(c.Transfer),
	}
}

// HasAll reports whether every type has at least one category.
func (c CategoryConfig) HasAll() bool {
	return len(c.Expense) > 0 && len(c.Income) > 0 && len(c.Transfer) > 0
}

// HasAny reports whether at least one type has a category.
func (c CategoryConfig) HasAny() bool {
	return len(c.Expense) > 0 || len(c.Income) > 0 || len(c.Transfer) > 0
}

// OnboardingState is the user's account and category configuration.
// The confirmed flags gate whether remote data may overwrite local data.
type OnboardingState struct {
	SheetFolderID       string         `json:"sheetFolderId,omitempty"`
	Accounts            []string       `json:"accounts"`
	Categories          CategoryConfig `json:"categories"`
	AccountsConfirmed   bool           `json:"accountsConfirmed"`
	CategoriesConfirmed bool           `json:"categoriesConfirmed"`
}

// DefaultOnboardingState returns a fresh state with built-in categories.
func DefaultOnboardingState() OnboardingState {
	return OnboardingState{
		Accounts:   []string{},
		Categories: DefaultCategories(),
	}
}

// Clone returns a deep copy.
func (s OnboardingState) Clone() OnboardingState {
	next := s
	next.Accounts = copyStrings(s.Accounts)
	next.Categories = s.Categories.Clone()
	return next
}

// OnboardingUpdate is a shallow patch over OnboardingState. Nil fields are untouched.
type OnboardingUpdate struct {
	SheetFolderID       *string
	Accounts            *[]string
	Categories          *CategoryConfig
	AccountsConfirmed   *bool
	CategoriesConfirmed *bool
}

// TouchesAccounts reports whether the update sets any account field.
func (u OnboardingUpdate) TouchesAccounts() bool {
	return u.Accounts != nil || u.AccountsConfirmed != nil
}

// TouchesCategories reports whether the update sets any category field.
func (u OnboardingUpdate) TouchesCategories() bool {
	return u.Categories != nil || u.CategoriesConfirmed != nil
}

// Apply returns s with the update merged in.
func (u OnboardingUpdate) Apply(s OnboardingState) OnboardingState {
	next := s.Clone()
	if u.SheetFolderID != nil {
		next.SheetFolderID = *u.SheetFolderID
	}
	if u.Accounts != nil {
		next.Accounts = copyStrings(*u.Accounts)
	}
	if u.AccountsConfirmed != nil {
		next.AccountsConfirmed = *u.AccountsConfirmed
	}
	if u.Categories != nil {
		next.Categories = u.Categories.Clone()
	}
	if u.CategoriesConfirmed != nil {
		next.CategoriesConfirmed = *u.CategoriesConfirmed
	}
	return next
}

// SheetConfig is the accounts/categories block mirrored in the spreadsheet.
// A nil field means the sheet has no data for that section.
type SheetConfig struct {
	Accounts   []string
	Categories *CategoryConfig
}

// NormalizeStringList trims entries, drops empties and removes
// case-insensitive duplicates, keeping the first spelling seen.
func NormalizeStringList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	next := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		next = append(next, trimmed)
	}
	return next
}

// copyStrings copies values, keeping the nil/empty distinction.
func copyStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
