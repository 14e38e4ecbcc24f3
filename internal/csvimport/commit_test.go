package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/log"
)

// memStore keeps committed state; each runInTx works on a staged copy that
// replaces it only when fn succeeds.
type memStore struct {
	categories   []core.Category
	transactions []core.Transaction
	failOn       string
}

type memSink struct {
	store  *memStore
	nextID int64
}

func (s *memSink) GetOrCreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	for _, existing := range s.store.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name && existing.Kind == c.Kind {
			return existing, nil
		}
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.nextID++
	c.ID = s.nextID
	s.store.categories = append(s.store.categories, c)
	return c, nil
}

func (s *memSink) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if s.store.failOn != "" && t.Notes == s.store.failOn {
		return core.Transaction{}, errors.New("disk full")
	}
	s.nextID++
	t.ID = s.nextID
	s.store.transactions = append(s.store.transactions, t)
	return t, nil
}

func (m *memStore) runInTx(_ context.Context, fn func(Sink) error) error {
	staged := &memStore{
		categories:   append([]core.Category(nil), m.categories...),
		transactions: append([]core.Transaction(nil), m.transactions...),
		failOn:       m.failOn,
	}
	sink := &memSink{store: staged, nextID: int64(len(m.categories) + len(m.transactions))}
	if err := fn(sink); err != nil {
		return err
	}
	m.categories = staged.categories
	m.transactions = staged.transactions
	return nil
}

func newTestCommitter(store *memStore) *Committer {
	logger := log.New(log.Config{Output: io.Discard, Component: log.ComponentImport})
	return NewCommitter(store.runInTx, logger)
}

func previewFrom(t *testing.T, text string) Preview {
	t.Helper()
	p, err := Parse([]byte(text))
	require.NoError(t, err)
	return p
}

var commitMapping = Mapping{
	"date":     FieldDate,
	"amount":   FieldAmount,
	"category": FieldCategory,
	"memo":     FieldDescription,
}

func TestCommit_CreatesTransactionsAndCategories(t *testing.T) {
	store := &memStore{}
	p := previewFrom(t, "date,amount,category,memo\n"+
		"2024-04-05,-3.50,Cafe,Coffee\n"+
		"2024-04-06,-4.00,Cafe,Cake\n"+
		"2024-04-07,1500,Salary,April\n"+
		"yesterday,1,Cafe,bad date\n"+
		"2024-04-08,lots,Cafe,bad amount\n")

	res, err := newTestCommitter(store).Commit(context.Background(), "alice", p, commitMapping)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Created)
	assert.Equal(t, []SkippedRow{
		{Row: 4, Reason: SkipBadDate},
		{Row: 5, Reason: SkipBadAmount},
	}, res.Skipped)

	require.Len(t, store.categories, 2)
	assert.Equal(t, "Cafe", store.categories[0].Name)
	assert.Equal(t, core.KindExpense, store.categories[0].Kind)
	assert.Equal(t, core.DefaultImportColor, store.categories[0].Color)
	assert.Equal(t, core.KindIncome, store.categories[1].Kind)

	require.Len(t, store.transactions, 3)
	first := store.transactions[0]
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, "3.50", first.Amount.StringFixed(2))
	assert.Equal(t, core.KindExpense, first.Type)
	assert.Equal(t, "Coffee", first.Notes)
	assert.Equal(t, "GBP", first.Currency)
	require.NotNil(t, first.CategoryID)
	assert.Equal(t, *first.CategoryID, *store.transactions[1].CategoryID)
}

func TestCommit_InvalidRowRollsBackEverything(t *testing.T) {
	store := &memStore{}
	var b strings.Builder
	b.WriteString("date,amount,category,memo\n")
	for i := 1; i <= 10; i++ {
		amount := fmt.Sprintf("-%d.00", i)
		if i == 7 {
			amount = "0"
		}
		fmt.Fprintf(&b, "2024-04-%02d,%s,Groceries,row %d\n", i, amount, i)
	}

	res, err := newTestCommitter(store).Commit(context.Background(), "alice", previewFrom(t, b.String()), commitMapping)
	require.Error(t, err)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 7, rowErr.Row)
	assert.ErrorIs(t, err, core.ErrAmountTooSmall)

	assert.Zero(t, res.Created)
	assert.Empty(t, store.transactions)
	assert.Empty(t, store.categories)
}

func TestCommit_StorageFailureRollsBack(t *testing.T) {
	store := &memStore{failOn: "second"}
	p := previewFrom(t, "date,amount,category,memo\n2024-01-01,5,,first\n2024-01-02,6,,second\n")

	_, err := newTestCommitter(store).Commit(context.Background(), "alice", p, commitMapping)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Empty(t, store.transactions)
}

func TestCommit_CategoryNameTooLongAborts(t *testing.T) {
	store := &memStore{}
	p := previewFrom(t, "date,amount,category\n2024-01-01,5,"+strings.Repeat("x", 121)+"\n")

	_, err := newTestCommitter(store).Commit(context.Background(), "alice", p, Mapping{
		"date": FieldDate, "amount": FieldAmount, "category": FieldCategory,
	})
	assert.ErrorIs(t, err, core.ErrNameTooLong)
	assert.Empty(t, store.categories)
}

func TestCommit_AllRowsSkipped(t *testing.T) {
	store := &memStore{}
	p := previewFrom(t, "date,amount\nnope,1\n,2\n")

	res, err := newTestCommitter(store).Commit(context.Background(), "alice", p, Mapping{
		"date": FieldDate, "amount": FieldAmount,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Len(t, res.Skipped, 2)
}
