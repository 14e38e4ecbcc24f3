package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// DefaultMonths is the length of the monthly report window.
const DefaultMonths = 12

type MonthlyRow struct {
	Label   string          `json:"label"`
	Month   core.Date       `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// MonthlyReport carries the same numbers twice: as parallel series for
// charts and as table rows.
type MonthlyReport struct {
	Labels          []string          `json:"labels"`
	Income          []decimal.Decimal `json:"income"`
	Expense         []decimal.Decimal `json:"expense"`
	Net             []decimal.Decimal `json:"net"`
	Rows            []MonthlyRow      `json:"rows"`
	CurrencyWarning string            `json:"currency_warning,omitempty"`
}

// WindowStart is the first day of the oldest month in a window of n months
// ending with now's month.
func WindowStart(now time.Time, n int) core.Date {
	return core.DateOf(now).AddMonths(-(n - 1))
}

// MonthLabel renders "Jan 2024".
func MonthLabel(d core.Date) string {
	return fmt.Sprintf("%s %d", d.Month().String()[:3], d.Year())
}

// BuildMonthly lays buckets onto the n-month window ending at now, oldest
// first. Months without data are zero; buckets outside the window are
// ignored.
func BuildMonthly(now time.Time, n int, buckets []core.MonthKindTotal) MonthlyReport {
	type pair struct{ income, expense decimal.Decimal }
	byMonth := make(map[string]pair, len(buckets))
	for _, b := range buckets {
		key := b.Month.MonthStart().String()
		p := byMonth[key]
		switch b.Kind {
		case core.KindIncome:
			p.income = p.income.Add(b.Total)
		case core.KindExpense:
			p.expense = p.expense.Add(b.Total)
		}
		byMonth[key] = p
	}

	r := MonthlyReport{
		Labels:  make([]string, 0, n),
		Income:  make([]decimal.Decimal, 0, n),
		Expense: make([]decimal.Decimal, 0, n),
		Net:     make([]decimal.Decimal, 0, n),
	}
	months := make([]core.Date, 0, n)
	month := WindowStart(now, n)
	for i := 0; i < n; i++ {
		p := byMonth[month.String()]
		months = append(months, month)
		r.Labels = append(r.Labels, MonthLabel(month))
		r.Income = append(r.Income, p.income)
		r.Expense = append(r.Expense, p.expense)
		r.Net = append(r.Net, p.income.Sub(p.expense))
		month = month.AddMonths(1)
	}

	r.Rows = make([]MonthlyRow, len(r.Labels))
	for i := range r.Labels {
		r.Rows[i] = MonthlyRow{
			Label:   r.Labels[i],
			Month:   months[i],
			Income:  r.Income[i],
			Expense: r.Expense[i],
			Net:     r.Net[i],
		}
	}
	return r
}
