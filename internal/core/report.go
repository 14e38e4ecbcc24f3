package core

import "github.com/shopspring/decimal"

// MonthKindTotal is the sum of one kind of transaction in one month.
type MonthKindTotal struct {
	Month Date
	Kind  Kind
	Total decimal.Decimal
}

// CategoryTotal is the sum of a category's transactions. Categories are
// grouped by name and kind, so same-named categories of one user collapse.
type CategoryTotal struct {
	Name  string          `json:"name"`
	Kind  Kind            `json:"kind"`
	Total decimal.Decimal `json:"total"`
}

// KindTotals holds income and expense sums over a window.
type KindTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}
