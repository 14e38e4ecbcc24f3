package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

type CategoryReport struct {
	Categories      []core.CategoryTotal `json:"categories"`
	IncomeTotal     decimal.Decimal      `json:"income_total"`
	ExpenseTotal    decimal.Decimal      `json:"expense_total"`
	NetTotal        decimal.Decimal      `json:"net_total"`
	CurrencyWarning string               `json:"currency_warning,omitempty"`
}

// SortTotals orders totals largest first, then by name.
func SortTotals(rows []core.CategoryTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Name < rows[j].Name
	})
}

// BuildCategoryReport sorts rows and sums them by kind.
func BuildCategoryReport(rows []core.CategoryTotal) CategoryReport {
	sorted := append([]core.CategoryTotal{}, rows...)
	SortTotals(sorted)

	r := CategoryReport{Categories: sorted}
	for _, row := range sorted {
		switch row.Kind {
		case core.KindIncome:
			r.IncomeTotal = r.IncomeTotal.Add(row.Total)
		case core.KindExpense:
			r.ExpenseTotal = r.ExpenseTotal.Add(row.Total)
		}
	}
	r.NetTotal = r.IncomeTotal.Sub(r.ExpenseTotal)
	return r
}

// TopCategories returns the n largest totals.
func TopCategories(rows []core.CategoryTotal, n int) []core.CategoryTotal {
	sorted := append([]core.CategoryTotal{}, rows...)
	SortTotals(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
