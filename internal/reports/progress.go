package reports

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

// BudgetProgress is a budget next to what was spent against it in its
// start month.
type BudgetProgress struct {
	Budget     core.Budget     `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ComputeBudgetProgress clamps remaining at zero and the percentage at 100.
// A zero budget reports 0%.
func ComputeBudgetProgress(b core.Budget, spent decimal.Decimal) BudgetProgress {
	remaining := b.Amount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	pct := decimal.Zero
	if !b.Amount.IsZero() {
		pct = decimal.Min(hundred, spent.Div(b.Amount).Mul(hundred).Round(2))
	}

	return BudgetProgress{
		Budget:     b,
		Spent:      spent,
		Remaining:  remaining,
		Percentage: pct,
	}
}
