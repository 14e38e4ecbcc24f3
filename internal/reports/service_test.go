package reports

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/log"
)

type fakeStore struct {
	mu      sync.Mutex
	filters []core.Filter

	monthly    []core.MonthKindTotal
	categories []core.CategoryTotal
	totals     core.KindTotals
	currencies []string
	budgets    []core.Budget
	spent      map[int64]decimal.Decimal
	recent     []core.Transaction
	err        error
}

func (f *fakeStore) record(filter core.Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
}

func (f *fakeStore) MonthlyTotals(_ context.Context, _ string, _ core.Date) ([]core.MonthKindTotal, error) {
	return f.monthly, f.err
}

func (f *fakeStore) CategoryTotals(_ context.Context, _ string, filter core.Filter) ([]core.CategoryTotal, error) {
	f.record(filter)
	return f.categories, f.err
}

func (f *fakeStore) KindTotals(_ context.Context, _ string, filter core.Filter) (core.KindTotals, error) {
	f.record(filter)
	return f.totals, f.err
}

func (f *fakeStore) Currencies(_ context.Context, _ string, filter core.Filter) ([]string, error) {
	f.record(filter)
	return f.currencies, f.err
}

func (f *fakeStore) ListBudgets(_ context.Context, _ string) ([]core.Budget, error) {
	return f.budgets, f.err
}

func (f *fakeStore) SumCategoryExpenses(_ context.Context, _ string, categoryID int64, from, to core.Date) (decimal.Decimal, error) {
	if from.Day() != 1 || to.AddDate(0, 0, 1).Day() != 1 {
		return decimal.Zero, errors.New("window is not a calendar month")
	}
	return f.spent[categoryID], f.err
}

func (f *fakeStore) RecentTransactions(_ context.Context, _ string, n int) ([]core.Transaction, error) {
	if len(f.recent) > n {
		return f.recent[:n], f.err
	}
	return f.recent, f.err
}

func newTestService(store Store) *Service {
	logger := log.New(log.Config{Output: io.Discard})
	return NewService(store, logger).WithClock(func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	})
}

func TestService_Dashboard(t *testing.T) {
	store := &fakeStore{
		totals: core.KindTotals{Income: dec("2000"), Expense: dec("450.25")},
		categories: []core.CategoryTotal{
			{Name: "a", Kind: core.KindExpense, Total: dec("1")},
			{Name: "b", Kind: core.KindExpense, Total: dec("2")},
			{Name: "c", Kind: core.KindExpense, Total: dec("3")},
			{Name: "d", Kind: core.KindExpense, Total: dec("4")},
			{Name: "e", Kind: core.KindExpense, Total: dec("5")},
			{Name: "Pay", Kind: core.KindIncome, Total: dec("2000")},
		},
		currencies: []string{"EUR", "GBP"},
		recent:     make([]core.Transaction, 12),
	}

	d, err := newTestService(store).Dashboard(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", d.Month.String())
	assert.Equal(t, "1549.75", d.NetTotal.StringFixed(2))
	require.Len(t, d.TopCategories, 5)
	assert.Equal(t, "Pay", d.TopCategories[0].Name)
	assert.Equal(t, "b", d.TopCategories[4].Name)
	assert.Len(t, d.Recent, 10)
	assert.Contains(t, d.CurrencyWarning, "this month")

	for _, f := range store.filters {
		require.NotNil(t, f.DateFrom)
		require.NotNil(t, f.DateTo)
		assert.Equal(t, "2024-03-01", f.DateFrom.String())
		assert.Equal(t, "2024-03-31", f.DateTo.String())
	}
}

func TestService_DashboardError(t *testing.T) {
	_, err := newTestService(&fakeStore{err: errors.New("db down")}).Dashboard(context.Background(), "alice")
	assert.ErrorContains(t, err, "db down")
}

func TestService_Monthly(t *testing.T) {
	store := &fakeStore{
		monthly:    []core.MonthKindTotal{{Month: core.NewDate(2024, 3, 1), Kind: core.KindIncome, Total: dec("10")}},
		currencies: []string{"GBP"},
	}
	r, err := newTestService(store).Monthly(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Mar 2024", r.Labels[11])
	assert.Equal(t, "10", r.Income[11].String())
	assert.Empty(t, r.CurrencyWarning)

	require.Len(t, store.filters, 1)
	assert.Equal(t, "2023-04-01", store.filters[0].DateFrom.String())
}

func TestService_Categories(t *testing.T) {
	store := &fakeStore{
		categories: []core.CategoryTotal{{Name: "Food", Kind: core.KindExpense, Total: dec("12")}},
		currencies: []string{"GBP", "USD"},
	}
	kind := core.KindExpense
	r, err := newTestService(store).Categories(context.Background(), "alice", core.Filter{Type: &kind})
	require.NoError(t, err)
	assert.Equal(t, "-12", r.NetTotal.String())
	assert.NotEmpty(t, r.CurrencyWarning)
	for _, f := range store.filters {
		assert.Equal(t, &kind, f.Type)
	}
}

func TestService_BudgetProgress(t *testing.T) {
	store := &fakeStore{
		budgets: []core.Budget{
			{ID: 1, CategoryID: 10, Amount: dec("200"), StartMonth: core.NewDate(2024, 2, 1)},
			{ID: 2, CategoryID: 11, Amount: dec("50"), StartMonth: core.NewDate(2024, 3, 1)},
		},
		spent: map[int64]decimal.Decimal{10: dec("50"), 11: dec("80")},
	}
	progress, err := newTestService(store).BudgetProgress(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, "25.00", progress[0].Percentage.StringFixed(2))
	assert.Equal(t, "150.00", progress[0].Remaining.StringFixed(2))
	assert.Equal(t, "100.00", progress[1].Percentage.StringFixed(2))
	assert.True(t, progress[1].Remaining.IsZero())
}
