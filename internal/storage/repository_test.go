package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCategory(t *testing.T, q *Queries, user, name string, kind core.Kind) core.Category {
	t.Helper()
	c, err := q.CreateCategory(context.Background(), core.Category{UserID: user, Name: name, Kind: kind, Color: "#112233"})
	require.NoError(t, err)
	return c
}

func mustTag(t *testing.T, q *Queries, user, name string) core.Tag {
	t.Helper()
	tag, err := q.CreateTag(context.Background(), core.Tag{UserID: user, Name: name})
	require.NoError(t, err)
	return tag
}

func mustTransaction(t *testing.T, q *Queries, txn core.Transaction) core.Transaction {
	t.Helper()
	if txn.Currency == "" {
		txn.Currency = core.DefaultCurrency
	}
	created, err := q.CreateTransaction(context.Background(), txn)
	require.NoError(t, err)
	return created
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	v1, err := RunMigrations(path)
	require.NoError(t, err)
	v2, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v1)
	assert.Equal(t, v1, v2)
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestCategories(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	food := mustCategory(t, q, "alice", "Food", core.KindExpense)
	assert.NotZero(t, food.ID)
	assert.False(t, food.CreatedAt.IsZero())

	t.Run("same name different kind is allowed", func(t *testing.T) {
		_, err := q.CreateCategory(ctx, core.Category{UserID: "alice", Name: "Food", Kind: core.KindIncome})
		assert.NoError(t, err)
	})

	t.Run("duplicate name and kind conflicts", func(t *testing.T) {
		_, err := q.CreateCategory(ctx, core.Category{UserID: "alice", Name: "Food", Kind: core.KindExpense})
		assert.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		_, err := q.GetCategory(ctx, "bob", food.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, q.DeleteCategory(ctx, "bob", food.ID), core.ErrNotFound)

		list, err := q.ListCategories(ctx, ListCategoriesParams{UserID: "bob"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("get or create reuses the natural key", func(t *testing.T) {
		got, err := q.GetOrCreateCategory(ctx, core.Category{UserID: "alice", Name: "Food", Kind: core.KindExpense, Color: "#999999"})
		require.NoError(t, err)
		assert.Equal(t, food.ID, got.ID)
		assert.Equal(t, "#112233", got.Color)

		fresh, err := q.GetOrCreateCategory(ctx, core.Category{UserID: "alice", Name: "Travel", Kind: core.KindExpense, Color: "#999999"})
		require.NoError(t, err)
		assert.NotEqual(t, food.ID, fresh.ID)
		assert.Equal(t, "#999999", fresh.Color)
	})

	t.Run("get or create validates new categories", func(t *testing.T) {
		_, err := q.GetOrCreateCategory(ctx, core.Category{UserID: "alice", Name: "", Kind: core.KindExpense})
		assert.ErrorIs(t, err, core.ErrEmptyName)
	})

	t.Run("list filters and orders by name", func(t *testing.T) {
		archived := true
		old := mustCategory(t, q, "alice", "Old stuff", core.KindExpense)
		old.Archived = true
		_, err := q.UpdateCategory(ctx, old)
		require.NoError(t, err)

		all, err := q.ListCategories(ctx, ListCategoriesParams{UserID: "alice"})
		require.NoError(t, err)
		names := make([]string, 0, len(all))
		for _, c := range all {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Food", "Food", "Old stuff", "Travel"}, names)

		onlyArchived, err := q.ListCategories(ctx, ListCategoriesParams{UserID: "alice", Archived: &archived})
		require.NoError(t, err)
		require.Len(t, onlyArchived, 1)
		assert.Equal(t, "Old stuff", onlyArchived[0].Name)

		search, err := q.ListCategories(ctx, ListCategoriesParams{UserID: "alice", Query: "trav"})
		require.NoError(t, err)
		require.Len(t, search, 1)
		assert.Equal(t, "Travel", search[0].Name)
	})
}

func TestTransactions(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	food := mustCategory(t, q, "alice", "Food", core.KindExpense)
	trip := mustTag(t, q, "alice", "trip")
	work := mustTag(t, q, "alice", "work")
	bobTag := mustTag(t, q, "bob", "mine")

	lunch := mustTransaction(t, q, core.Transaction{
		UserID: "alice", Type: core.KindExpense, Amount: amount("12.50"),
		Date: core.NewDate(2024, 3, 2), CategoryID: &food.ID,
		Tags: []core.Tag{trip, work}, Notes: "Lunch in Rome",
	})
	salary := mustTransaction(t, q, core.Transaction{
		UserID: "alice", Type: core.KindIncome, Amount: amount("2000"),
		Date: core.NewDate(2024, 3, 1), Notes: "Salary",
	})
	dinner := mustTransaction(t, q, core.Transaction{
		UserID: "alice", Type: core.KindExpense, Amount: amount("30.00"),
		Date: core.NewDate(2024, 3, 2), CategoryID: &food.ID, Notes: "Dinner 100%",
	})
	mustTransaction(t, q, core.Transaction{
		UserID: "bob", Type: core.KindExpense, Amount: amount("1"), Date: core.NewDate(2024, 3, 2),
	})

	t.Run("get loads category and tags", func(t *testing.T) {
		got, err := q.GetTransaction(ctx, "alice", lunch.ID)
		require.NoError(t, err)
		assert.Equal(t, "12.50", got.Amount.StringFixed(2))
		require.NotNil(t, got.Category)
		assert.Equal(t, "Food", got.Category.Name)
		assert.Equal(t, []int64{trip.ID, work.ID}, got.TagIDs())
		assert.Equal(t, "2024-03-02", got.Date.String())
	})

	t.Run("order is date then creation descending", func(t *testing.T) {
		list, err := q.ListTransactions(ctx, ListTransactionsParams{UserID: "alice"})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []int64{dinner.ID, lunch.ID, salary.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("filters", func(t *testing.T) {
		expense := core.KindExpense
		min := amount("20")
		from := core.NewDate(2024, 3, 2)
		tests := []struct {
			name   string
			filter core.Filter
			want   []int64
		}{
			{"type", core.Filter{Type: &expense}, []int64{dinner.ID, lunch.ID}},
			{"tag", core.Filter{TagID: &trip.ID}, []int64{lunch.ID}},
			{"category", core.Filter{CategoryID: &food.ID}, []int64{dinner.ID, lunch.ID}},
			{"amount", core.Filter{AmountMin: &min}, []int64{dinner.ID, salary.ID}},
			{"date", core.Filter{DateFrom: &from}, []int64{dinner.ID, lunch.ID}},
			{"notes case insensitive", core.Filter{Query: "rome"}, []int64{lunch.ID}},
			{"wildcards are literal", core.Filter{Query: "100%"}, []int64{dinner.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				list, err := q.ListTransactions(ctx, ListTransactionsParams{UserID: "alice", Filter: tt.filter})
				require.NoError(t, err)
				ids := make([]int64, 0, len(list))
				for _, txn := range list {
					ids = append(ids, txn.ID)
				}
				assert.Equal(t, tt.want, ids)

				n, err := q.CountTransactions(ctx, "alice", tt.filter)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.want)), n)
			})
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := q.ListTransactions(ctx, ListTransactionsParams{UserID: "alice", Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, salary.ID, page[0].ID)
	})

	t.Run("foreign tag is rejected", func(t *testing.T) {
		_, err := q.CreateTransaction(ctx, core.Transaction{
			UserID: "alice", Type: core.KindExpense, Amount: amount("1"), Currency: "GBP",
			Date: core.NewDate(2024, 1, 1), Tags: []core.Tag{bobTag},
		})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("foreign category is rejected", func(t *testing.T) {
		bobCat := mustCategory(t, q, "bob", "Bob food", core.KindExpense)
		_, err := q.CreateTransaction(ctx, core.Transaction{
			UserID: "alice", Type: core.KindExpense, Amount: amount("1"), Currency: "GBP",
			Date: core.NewDate(2024, 1, 1), CategoryID: &bobCat.ID,
		})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("update replaces tags", func(t *testing.T) {
		lunch.Tags = []core.Tag{work}
		lunch.Notes = "Lunch"
		updated, err := q.UpdateTransaction(ctx, lunch)
		require.NoError(t, err)
		assert.Equal(t, []int64{work.ID}, updated.TagIDs())
		assert.Equal(t, "Lunch", updated.Notes)
	})

	t.Run("deleting a tag unlinks it", func(t *testing.T) {
		require.NoError(t, q.DeleteTag(ctx, "alice", work.ID))
		got, err := q.GetTransaction(ctx, "alice", lunch.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Tags)
	})

	t.Run("deleting a category uncategorises transactions", func(t *testing.T) {
		require.NoError(t, q.DeleteCategory(ctx, "alice", food.ID))
		got, err := q.GetTransaction(ctx, "alice", dinner.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CategoryID)
		assert.Nil(t, got.Category)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, q.DeleteTransaction(ctx, "bob", salary.ID), core.ErrNotFound)
		require.NoError(t, q.DeleteTransaction(ctx, "alice", salary.ID))
		_, err := q.GetTransaction(ctx, "alice", salary.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestSearchFoldsUnicode(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	cafe := mustTransaction(t, q, core.Transaction{
		UserID: "alice", Type: core.KindExpense, Amount: amount("3.20"),
		Date: core.NewDate(2024, 3, 1), Notes: "CAFÉ AU LAIT",
	})
	mustTransaction(t, q, core.Transaction{
		UserID: "alice", Type: core.KindExpense, Amount: amount("4.00"),
		Date: core.NewDate(2024, 3, 2), Notes: "Cafeteria",
	})

	for _, query := range []string{"café", "Café", "CAFÉ", "é au"} {
		t.Run(query, func(t *testing.T) {
			list, err := q.ListTransactions(ctx, ListTransactionsParams{UserID: "alice", Filter: core.Filter{Query: query}})
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, cafe.ID, list[0].ID)

			n, err := q.CountTransactions(ctx, "alice", core.Filter{Query: query})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}

	t.Run("tag and category names", func(t *testing.T) {
		mustTag(t, q, "alice", "ÉPICERIE")
		mustCategory(t, q, "alice", "Überweisung", core.KindIncome)

		tags, err := q.ListTags(ctx, ListTagsParams{UserID: "alice", Query: "épi"})
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "ÉPICERIE", tags[0].Name)

		cats, err := q.ListCategories(ctx, ListCategoriesParams{UserID: "alice", Query: "ÜBER"})
		require.NoError(t, err)
		require.Len(t, cats, 1)
		assert.Equal(t, "Überweisung", cats[0].Name)
	})
}

func TestWithinTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithinTx(ctx, func(q *Queries) error {
			mustCategory(t, q, "alice", "Rolled back", core.KindExpense)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		list, err := repo.Queries().ListCategories(ctx, ListCategoriesParams{UserID: "alice"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("panic rolls back", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = repo.WithinTx(ctx, func(q *Queries) error {
				mustCategory(t, q, "alice", "Panicked", core.KindExpense)
				panic("boom")
			})
		})

		list, err := repo.Queries().ListCategories(ctx, ListCategoriesParams{UserID: "alice"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("success commits", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(q *Queries) error {
			mustCategory(t, q, "alice", "Kept", core.KindExpense)
			return nil
		})
		require.NoError(t, err)

		list, err := repo.Queries().ListCategories(ctx, ListCategoriesParams{UserID: "alice"})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestBudgets(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	food := mustCategory(t, q, "alice", "Food", core.KindExpense)
	march := core.NewDate(2024, 3, 1)

	b, err := q.CreateBudget(ctx, core.Budget{
		UserID: "alice", CategoryID: food.ID, Period: core.PeriodMonth,
		Amount: amount("200"), StartMonth: march,
	})
	require.NoError(t, err)
	require.NotNil(t, b.Category)
	assert.Equal(t, "Food", b.Category.Name)
	assert.Equal(t, "200.00", b.Amount.StringFixed(2))

	_, err = q.CreateBudget(ctx, core.Budget{
		UserID: "alice", CategoryID: food.ID, Period: core.PeriodMonth,
		Amount: amount("50"), StartMonth: march,
	})
	assert.ErrorIs(t, err, core.ErrConflict)

	april, err := q.CreateBudget(ctx, core.Budget{
		UserID: "alice", CategoryID: food.ID, Period: core.PeriodMonth,
		Amount: amount("150"), StartMonth: core.NewDate(2024, 4, 1),
	})
	require.NoError(t, err)

	list, err := q.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, april.ID, list[0].ID)

	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("40"), Date: core.NewDate(2024, 3, 31), CategoryID: &food.ID})
	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("5"), Date: core.NewDate(2024, 4, 1), CategoryID: &food.ID})
	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("7"), Date: core.NewDate(2024, 3, 1)})

	spent, err := q.SumCategoryExpenses(ctx, "alice", food.ID, march, march.MonthEnd())
	require.NoError(t, err)
	assert.Equal(t, "40.00", spent.StringFixed(2))

	require.NoError(t, q.DeleteCategory(ctx, "alice", food.ID))
	list, err = q.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAggregates(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	ctx := context.Background()

	food := mustCategory(t, q, "alice", "Food", core.KindExpense)
	pay := mustCategory(t, q, "alice", "Pay", core.KindIncome)

	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("10"), Date: core.NewDate(2024, 2, 10), CategoryID: &food.ID})
	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("15"), Date: core.NewDate(2024, 3, 10), CategoryID: &food.ID})
	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindIncome, Amount: amount("100"), Date: core.NewDate(2024, 3, 1), CategoryID: &pay.ID, Currency: "EUR"})
	mustTransaction(t, q, core.Transaction{UserID: "alice", Type: core.KindExpense, Amount: amount("3"), Date: core.NewDate(2024, 3, 2)})
	mustTransaction(t, q, core.Transaction{UserID: "bob", Type: core.KindExpense, Amount: amount("99"), Date: core.NewDate(2024, 3, 2)})

	monthly, err := q.MonthlyTotals(ctx, "alice", core.NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.MonthKindTotal{
		{Month: core.NewDate(2024, 3, 1), Kind: core.KindExpense, Total: core.FromCents(1800)},
		{Month: core.NewDate(2024, 3, 1), Kind: core.KindIncome, Total: core.FromCents(10000)},
	}, monthly)

	totals, err := q.CategoryTotals(ctx, "alice", core.Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.CategoryTotal{
		{Name: "Food", Kind: core.KindExpense, Total: core.FromCents(2500)},
		{Name: "Pay", Kind: core.KindIncome, Total: core.FromCents(10000)},
	}, totals)

	from := core.NewDate(2024, 3, 1)
	kinds, err := q.KindTotals(ctx, "alice", core.Filter{DateFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, "100.00", kinds.Income.StringFixed(2))
	assert.Equal(t, "18.00", kinds.Expense.StringFixed(2))

	currencies, err := q.Currencies(ctx, "alice", core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR", "GBP"}, currencies)
}
