package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, b.period, b.amount_cents, b.start_month, b.rollover, b.created_at,
       c.id, c.user_id, c.name, c.kind, c.color, c.archived, c.created_at
FROM budgets b
JOIN categories c ON c.id = b.category_id `

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b          core.Budget
		period     string
		cents      int64
		startMonth string
		rollover   int64
		createdAt  string

		cat         core.Category
		catKind     string
		catArchived int64
		catCreated  string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &period, &cents, &startMonth, &rollover, &createdAt,
		&cat.ID, &cat.UserID, &cat.Name, &catKind, &cat.Color, &catArchived, &catCreated)
	if err != nil {
		return core.Budget{}, err
	}
	b.Period = core.Period(period)
	b.Amount = core.FromCents(cents)
	b.Rollover = rollover != 0
	if b.StartMonth, err = core.ParseDate(startMonth); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Budget{}, err
	}
	cat.Kind = core.Kind(catKind)
	cat.Archived = catArchived != 0
	if cat.CreatedAt, err = parseTimestamp(catCreated); err != nil {
		return core.Budget{}, err
	}
	b.Category = &cat
	return b, nil
}

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := q.checkCategoryOwner(ctx, b.UserID, &b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	created, _ := q.timestamp()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO budgets (user_id, category_id, period, amount_cents, start_month, rollover, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		b.UserID, b.CategoryID, string(b.Period), core.ToCents(b.Amount), b.StartMonth.String(),
		boolToInt(b.Rollover), created)
	if err := row.Scan(&b.ID); err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", mapError(err))
	}
	return q.GetBudget(ctx, b.UserID, b.ID)
}

func (q *Queries) GetBudget(ctx context.Context, userID string, id int64) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, budgetSelect+"WHERE b.user_id = ? AND b.id = ?", userID, id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, mapError(err))
	}
	return b, nil
}

// ListBudgets returns the user's budgets, newest start month first.
func (q *Queries) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		budgetSelect+"WHERE b.user_id = ? ORDER BY b.start_month DESC, c.name, b.id", userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := q.checkCategoryOwner(ctx, b.UserID, &b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, period = ?, amount_cents = ?, start_month = ?, rollover = ?
		 WHERE user_id = ? AND id = ?`,
		b.CategoryID, string(b.Period), core.ToCents(b.Amount), b.StartMonth.String(),
		boolToInt(b.Rollover), b.UserID, b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return q.GetBudget(ctx, b.UserID, b.ID)
}

func (q *Queries) DeleteBudget(ctx context.Context, userID string, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM budgets WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, mapError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return nil
}

// SumCategoryExpenses totals EXPENSE transactions of one category between
// from and to inclusive.
func (q *Queries) SumCategoryExpenses(ctx context.Context, userID string, categoryID int64, from, to core.Date) (decimal.Decimal, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = ? AND date >= ? AND date <= ?`,
		userID, categoryID, string(core.KindExpense), from.String(), to.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum category expenses: %w", err)
	}
	return core.FromCents(cents), nil
}
