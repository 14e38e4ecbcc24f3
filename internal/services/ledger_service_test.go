package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/csvimport"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*LedgerService, *fakePublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	pub := &fakePublisher{}
	logger := log.New(log.Config{Output: io.Discard})
	svc := NewLedgerService(repo, csvimport.NewPreviewStore(16, time.Minute), pub, logger).
		WithClock(func() time.Time { return testNow })
	t.Cleanup(func() { svc.Close() })
	return svc, pub
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Map()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerService_Close_NilComponents(t *testing.T) {
	service := &LedgerService{}
	assert.NoError(t, service.Close())
}

func TestLedgerService_Transactions(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	food, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: " Food ", Kind: "expense"})
	require.NoError(t, err)
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, core.KindExpense, food.Kind)

	pay, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: "Pay", Kind: core.KindIncome})
	require.NoError(t, err)
	trip, err := svc.CreateTag(ctx, "alice", TagInput{Name: "trip"})
	require.NoError(t, err)
	bobCat, err := svc.CreateCategory(ctx, "bob", CategoryInput{Name: "Food", Kind: core.KindExpense})
	require.NoError(t, err)
	bobTag, err := svc.CreateTag(ctx, "bob", TagInput{Name: "trip"})
	require.NoError(t, err)

	valid := TransactionInput{
		Type: core.KindExpense, Amount: dec("12.50"), Date: core.NewDate(2024, 3, 2),
		Category: &food.ID, Tags: []int64{trip.ID, trip.ID}, Notes: "Lunch",
	}

	t.Run("create", func(t *testing.T) {
		created, err := svc.CreateTransaction(ctx, "alice", valid)
		require.NoError(t, err)
		assert.Equal(t, "GBP", created.Currency)
		assert.Equal(t, "Food", created.CategoryName())
		assert.Equal(t, []int64{trip.ID}, created.TagIDs())
		assert.Contains(t, pub.types(), amqp.EventTransactionCreated)
	})

	tests := []struct {
		name  string
		edit  func(in *TransactionInput)
		field string
		want  error
	}{
		{"foreign category", func(in *TransactionInput) { in.Category = &bobCat.ID }, "category", core.ErrCategoryNotOwned},
		{"unknown category", func(in *TransactionInput) { id := int64(9999); in.Category = &id }, "category", core.ErrCategoryNotOwned},
		{"foreign tag", func(in *TransactionInput) { in.Tags = []int64{trip.ID, bobTag.ID} }, "tags", core.ErrTagNotOwned},
		{"kind mismatch", func(in *TransactionInput) { in.Category = &pay.ID }, "category", core.ErrCategoryKindMismatch},
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, "amount", core.ErrAmountTooSmall},
		{"three decimals", func(in *TransactionInput) { in.Amount = dec("1.005") }, "amount", core.ErrAmountPrecision},
		{"bad currency", func(in *TransactionInput) { in.Currency = "POUND" }, "currency", core.ErrInvalidCurrency},
		{"missing date", func(in *TransactionInput) { in.Date = core.Date{} }, "date", core.ErrMissingDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			_, err := svc.CreateTransaction(ctx, "alice", in)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}

	t.Run("update re-validates", func(t *testing.T) {
		created, err := svc.CreateTransaction(ctx, "alice", valid)
		require.NoError(t, err)

		in := valid
		in.Category = &bobCat.ID
		_, err = svc.UpdateTransaction(ctx, "alice", created.ID, in)
		assert.ErrorIs(t, err, core.ErrCategoryNotOwned)

		in = valid
		in.Tags = nil
		in.Amount = dec("99")
		updated, err := svc.UpdateTransaction(ctx, "alice", created.ID, in)
		require.NoError(t, err)
		assert.Empty(t, updated.Tags)
		assert.Equal(t, "99.00", updated.Amount.StringFixed(2))

		_, err = svc.UpdateTransaction(ctx, "bob", created.ID, in)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list pages", func(t *testing.T) {
		page, err := svc.ListTransactions(ctx, "alice", core.Filter{}, core.Page{Number: 1, Size: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 1, page.PageSize)
	})

	t.Run("category kind is locked once used", func(t *testing.T) {
		_, err := svc.UpdateCategory(ctx, "alice", food.ID, CategoryInput{Name: "Food", Kind: core.KindIncome})
		assert.ErrorIs(t, err, core.ErrCategoryKindMismatch)

		renamed, err := svc.UpdateCategory(ctx, "alice", food.ID, CategoryInput{Name: "Groceries", Kind: core.KindExpense, Color: "#00ff00"})
		require.NoError(t, err)
		assert.Equal(t, "Groceries", renamed.Name)
	})

	t.Run("duplicate category conflicts", func(t *testing.T) {
		_, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: "Pay", Kind: core.KindIncome})
		assert.ErrorIs(t, err, core.ErrConflict)
	})
}

func TestLedgerService_PublishFailureDoesNotFailWrites(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("circuit breaker is open")

	created, err := svc.CreateTransaction(context.Background(), "alice", TransactionInput{
		Type: core.KindIncome, Amount: dec("5"), Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestLedgerService_ImportFlow(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	upload := "\ufeffDate;Amount;Description;Category\n" +
		"05/03/2024;-3.50;Coffee;Cafe\n" +
		"06/03/2024;1200.00;Salary;Pay\n" +
		"not a date;1;Nope;\n"

	preview, err := svc.PreviewImport(ctx, "alice", []byte(upload))
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Amount", "Description", "Category"}, preview.Headers)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Equal(t, ";", preview.Delimiter)
	assert.Equal(t, csvimport.FieldDescription, preview.Suggested["Description"])
	assert.Equal(t, csvimport.Fields, preview.Columns)

	t.Run("incomplete mapping keeps the upload", func(t *testing.T) {
		_, err := svc.CommitImport(ctx, "alice", preview.Token, map[string]string{"Date": "date"})
		assert.ErrorIs(t, err, csvimport.ErrIncompleteMapping)

		_, err = svc.CommitImport(ctx, "alice", preview.Token, map[string]string{"Date": "when"})
		assert.ErrorIs(t, err, csvimport.ErrInvalidMapping)
	})

	t.Run("other users cannot commit", func(t *testing.T) {
		_, err := svc.CommitImport(ctx, "bob", preview.Token, preview.Suggested.Strings())
		assert.ErrorIs(t, err, csvimport.ErrPreviewNotFound)
	})

	t.Run("commit", func(t *testing.T) {
		res, err := svc.CommitImport(ctx, "alice", preview.Token, preview.Suggested.Strings())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)
		assert.Len(t, res.Skipped, 1)
		assert.Contains(t, pub.types(), amqp.EventImportCommitted)

		cats, err := svc.ListCategories(ctx, "alice", ListQuery{})
		require.NoError(t, err)
		require.Len(t, cats, 2)
		assert.Equal(t, "Cafe", cats[0].Name)
		assert.Equal(t, core.KindExpense, cats[0].Kind)
		assert.Equal(t, core.DefaultImportColor, cats[0].Color)
		assert.Equal(t, core.KindIncome, cats[1].Kind)
	})

	t.Run("token is single use", func(t *testing.T) {
		_, err := svc.CommitImport(ctx, "alice", preview.Token, preview.Suggested.Strings())
		assert.ErrorIs(t, err, csvimport.ErrPreviewNotFound)
	})
}

func TestLedgerService_ImportRollsBackOnInvalidRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("date,amount,category\n")
	for i := 1; i <= 10; i++ {
		amount := fmt.Sprintf("-%d.00", i)
		if i == 7 {
			amount = "0.00"
		}
		fmt.Fprintf(&b, "2024-03-%02d,%s,Groceries\n", i, amount)
	}

	preview, err := svc.PreviewImport(ctx, "alice", []byte(b.String()))
	require.NoError(t, err)

	_, err = svc.CommitImport(ctx, "alice", preview.Token, preview.Suggested.Strings())
	var rowErr *csvimport.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 7, rowErr.Row)
	assert.ErrorIs(t, err, core.ErrAmountTooSmall)

	page, err := svc.ListTransactions(ctx, "alice", core.Filter{}, core.Page{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	cats, err := svc.ListCategories(ctx, "alice", ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, cats)

	_, err = svc.CommitImport(ctx, "alice", preview.Token, preview.Suggested.Strings())
	assert.ErrorIs(t, err, csvimport.ErrPreviewNotFound)
}

func TestLedgerService_NewUploadReplacesPrevious(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.PreviewImport(ctx, "alice", []byte("date,amount\n2024-01-01,1\n"))
	require.NoError(t, err)
	second, err := svc.PreviewImport(ctx, "alice", []byte("date,amount\n2024-01-02,2\n"))
	require.NoError(t, err)

	_, err = svc.CommitImport(ctx, "alice", first.Token, first.Suggested.Strings())
	assert.ErrorIs(t, err, csvimport.ErrPreviewNotFound)

	require.NoError(t, svc.AbandonImport(ctx, "alice", second.Token))
	assert.ErrorIs(t, svc.AbandonImport(ctx, "alice", second.Token), csvimport.ErrPreviewNotFound)
}

func TestLedgerService_PreviewRejectsEmptyUpload(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.PreviewImport(context.Background(), "alice", []byte(" \n,,\n"))
	assert.ErrorIs(t, err, csvimport.ErrEmptyFile)
}

func TestLedgerService_ImportCSV(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.ImportCSV(ctx, "alice", []byte("When,Value,Memo\n2024-03-01,-4.20,Bus\n"), map[string]string{
		"When": "date", "Value": "amount", "Memo": "description",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	res, err = svc.ImportCSV(ctx, "alice", []byte("Date,Amount\n2024-03-02,3\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	_, err = svc.ImportCSV(ctx, "alice", []byte("Foo,Bar\n1,2\n"), nil)
	assert.ErrorIs(t, err, csvimport.ErrIncompleteMapping)
}

func TestLedgerService_Budgets(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	food, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: "Food", Kind: core.KindExpense})
	require.NoError(t, err)
	pay, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: "Pay", Kind: core.KindIncome})
	require.NoError(t, err)
	old, err := svc.CreateCategory(ctx, "alice", CategoryInput{Name: "Old", Kind: core.KindExpense, Archived: true})
	require.NoError(t, err)
	bobCat, err := svc.CreateCategory(ctx, "bob", CategoryInput{Name: "Food", Kind: core.KindExpense})
	require.NoError(t, err)

	march := core.NewDate(2024, 3, 1)
	tests := []struct {
		name  string
		in    BudgetInput
		field string
		want  error
	}{
		{"income category", BudgetInput{Category: pay.ID, Amount: dec("10"), StartMonth: march}, "category", core.ErrBudgetCategoryKind},
		{"archived category", BudgetInput{Category: old.ID, Amount: dec("10"), StartMonth: march}, "category", core.ErrCategoryArchived},
		{"foreign category", BudgetInput{Category: bobCat.ID, Amount: dec("10"), StartMonth: march}, "category", core.ErrCategoryNotOwned},
		{"missing category", BudgetInput{Amount: dec("10"), StartMonth: march}, "category", core.ErrMissingCategory},
		{"mid-month start", BudgetInput{Category: food.ID, Amount: dec("10"), StartMonth: core.NewDate(2024, 3, 5)}, "start_month", core.ErrStartMonthDay},
		{"zero amount", BudgetInput{Category: food.ID, StartMonth: march}, "amount", core.ErrAmountTooSmall},
		{"weekly period", BudgetInput{Category: food.ID, Amount: dec("10"), StartMonth: march, Period: "WEEK"}, "period", core.ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBudget(ctx, "alice", tt.in)
			assert.ErrorIs(t, err, tt.want)
			fields := fieldErrors(t, err)
			assert.Contains(t, fields, tt.field)
		})
	}

	b, err := svc.CreateBudget(ctx, "alice", BudgetInput{Category: food.ID, Amount: dec("200"), StartMonth: march})
	require.NoError(t, err)
	assert.Equal(t, core.PeriodMonth, b.Period)
	assert.Contains(t, pub.types(), amqp.EventBudgetCreated)

	_, err = svc.CreateBudget(ctx, "alice", BudgetInput{Category: food.ID, Amount: dec("20"), StartMonth: march})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.CreateTransaction(ctx, "alice", TransactionInput{
		Type: core.KindExpense, Amount: dec("50"), Date: core.NewDate(2024, 3, 20), Category: &food.ID,
	})
	require.NoError(t, err)

	progress, err := svc.BudgetReport(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, "25.00", progress[0].Percentage.StringFixed(2))
	assert.Equal(t, "150.00", progress[0].Remaining.StringFixed(2))

	_, err = svc.UpdateCategory(ctx, "alice", food.ID, CategoryInput{Name: "Food", Kind: core.KindIncome})
	assert.Error(t, err)

	require.NoError(t, svc.DeleteBudget(ctx, "alice", b.ID))
	assert.ErrorIs(t, svc.DeleteBudget(ctx, "alice", b.ID), core.ErrNotFound)
}

func TestLedgerService_Export(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tag, err := svc.CreateTag(ctx, "alice", TagInput{Name: "home"})
	require.NoError(t, err)
	for i := 1; i <= 30; i++ {
		_, err := svc.CreateTransaction(ctx, "alice", TransactionInput{
			Type: core.KindExpense, Amount: decimal.NewFromInt(int64(i)), Date: core.NewDate(2024, 1, i%28+1),
			Tags: []int64{tag.ID}, Notes: fmt.Sprintf("row %d", i),
		})
		require.NoError(t, err)
	}

	preview, total, err := svc.ExportPreview(ctx, "alice", core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)
	assert.Len(t, preview, 25)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, "alice", core.Filter{Query: "row 3"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,type,amount,currency,category,tags,notes", lines[0])
	assert.Equal(t, "2024-01-04,EXPENSE,3.00,GBP,,home,row 3", lines[1])
	assert.Equal(t, "2024-01-03,EXPENSE,30.00,GBP,,home,row 30", lines[2])

	assert.Equal(t, "transactions-20240315-120000.csv", svc.ExportFilename())
}

func TestLedgerService_Dashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "alice", TransactionInput{Type: core.KindIncome, Amount: dec("100"), Date: core.NewDate(2024, 3, 1)})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, "alice", TransactionInput{Type: core.KindExpense, Amount: dec("40"), Currency: "eur", Date: core.NewDate(2024, 3, 2)})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, "alice", TransactionInput{Type: core.KindExpense, Amount: dec("7"), Date: core.NewDate(2024, 2, 2)})
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "60.00", d.NetTotal.StringFixed(2))
	assert.Len(t, d.Recent, 3)
	assert.NotEmpty(t, d.CurrencyWarning)

	monthly, err := svc.MonthlyReport(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Mar 2024", monthly.Labels[11])
	assert.Equal(t, "-7.00", monthly.Net[10].StringFixed(2))
}
