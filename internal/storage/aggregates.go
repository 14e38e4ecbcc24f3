package storage

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

// MonthlyTotals sums amounts per calendar month and kind for transactions
// dated on or after from.
func (q *Queries) MonthlyTotals(ctx context.Context, userID string, from core.Date) ([]core.MonthKindTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT substr(date, 1, 7) AS month, type, SUM(amount_cents)
		 FROM transactions
		 WHERE user_id = ? AND date >= ?
		 GROUP BY month, type
		 ORDER BY month`,
		userID, from.String())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var out []core.MonthKindTotal
	for rows.Next() {
		var (
			month, kind string
			cents       int64
		)
		if err := rows.Scan(&month, &kind, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		start, err := core.ParseDate(month + "-01")
		if err != nil {
			return nil, err
		}
		out = append(out, core.MonthKindTotal{Month: start, Kind: core.Kind(kind), Total: core.FromCents(cents)})
	}
	return out, rows.Err()
}

// CategoryTotals sums the filtered, categorised transactions per category
// name and kind. Uncategorised transactions are left out.
func (q *Queries) CategoryTotals(ctx context.Context, userID string, f core.Filter) ([]core.CategoryTotal, error) {
	where, args := compileFilter(userID, f)
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.name, c.kind, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id `+where+`
		 GROUP BY c.name, c.kind`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			ct    core.CategoryTotal
			kind  string
			cents int64
		)
		if err := rows.Scan(&ct.Name, &kind, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Kind = core.Kind(kind)
		ct.Total = core.FromCents(cents)
		out = append(out, ct)
	}
	return out, rows.Err()
}

// KindTotals sums income and expense over the filtered transactions.
func (q *Queries) KindTotals(ctx context.Context, userID string, f core.Filter) (core.KindTotals, error) {
	where, args := compileFilter(userID, f)
	args = append([]any{string(core.KindIncome), string(core.KindExpense)}, args...)

	var income, expense int64
	err := q.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount_cents END), 0),
		   COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount_cents END), 0)
		 FROM transactions t `+where,
		args...).Scan(&income, &expense)
	if err != nil {
		return core.KindTotals{}, fmt.Errorf("kind totals: %w", err)
	}
	return core.KindTotals{Income: core.FromCents(income), Expense: core.FromCents(expense)}, nil
}

// Currencies lists the distinct currency codes among the filtered
// transactions.
func (q *Queries) Currencies(ctx context.Context, userID string, f core.Filter) ([]string, error) {
	where, args := compileFilter(userID, f)
	rows, err := q.db.QueryContext(ctx,
		"SELECT DISTINCT t.currency FROM transactions t "+where+" ORDER BY t.currency", args...)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
