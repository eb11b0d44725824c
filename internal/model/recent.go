package model

// MaxRecentCategories caps each per-type MRU list.
const MaxRecentCategories = 6

// RecentCategories ranks category suggestions by most recent use.
type RecentCategories struct {
	Expense  []string `json:"expense"`
	Income   []string `json:"income"`
	Transfer []string `json:"transfer"`
}

// Touch moves category to the front of the list for t.
func (r RecentCategories) Touch(t TransactionType, category string) RecentCategories {
	list := func(current []string) []string {
		next := make([]string, 0, MaxRecentCategories)
		next = append(next, category)
		for _, item := range current {
			if item == category {
				continue
			}
			if len(next) == MaxRecentCategories {
				break
			}
			next = append(next, item)
		}
		return next
	}

	next := RecentCategories{
		Expense:  append([]string(nil), r.Expense...),
		Income:   append([]string(nil), r.Income...),
		Transfer: append([]string(nil), r.Transfer...),
	}
	switch t {
	case TypeExpense:
		next.Expense = list(r.Expense)
	case TypeIncome:
		next.Income = list(r.Income)
	case TypeTransfer:
		next.Transfer = list(r.Transfer)
	}
	return next
}

// ForType returns the MRU list for t.
func (r RecentCategories) ForType(t TransactionType) []string {
	switch t {
	case TypeExpense:
		return r.Expense
	case TypeIncome:
		return r.Income
	case TypeTransfer:
		return r.Transfer
	}
	return nil
}
