package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
)

const (
	dashboardTopCategories = 5
	dashboardRecent        = 10
)

// Store is the read side the reports need.
type Store interface {
	MonthlyTotals(ctx context.Context, userID string, from core.Date) ([]core.MonthKindTotal, error)
	CategoryTotals(ctx context.Context, userID string, f core.Filter) ([]core.CategoryTotal, error)
	KindTotals(ctx context.Context, userID string, f core.Filter) (core.KindTotals, error)
	Currencies(ctx context.Context, userID string, f core.Filter) ([]string, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	SumCategoryExpenses(ctx context.Context, userID string, categoryID int64, from, to core.Date) (decimal.Decimal, error)
	RecentTransactions(ctx context.Context, userID string, n int) ([]core.Transaction, error)
}

type Dashboard struct {
	Month           core.Date            `json:"month"`
	IncomeTotal     decimal.Decimal      `json:"income_total"`
	ExpenseTotal    decimal.Decimal      `json:"expense_total"`
	NetTotal        decimal.Decimal      `json:"net_total"`
	TopCategories   []core.CategoryTotal `json:"top_categories"`
	Recent          []core.Transaction   `json:"-"`
	CurrencyWarning string               `json:"currency_warning,omitempty"`
}

// Service runs report queries for one user at a time.
type Service struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

func NewService(store Store, logger *log.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithComponent(log.ComponentReports),
		now:    time.Now,
	}
}

// WithClock fixes the reference time, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Monthly builds the twelve-month income and expense report.
func (s *Service) Monthly(ctx context.Context, userID string) (MonthlyReport, error) {
	now := s.now()
	start := WindowStart(now, DefaultMonths)

	var (
		buckets    []core.MonthKindTotal
		currencies []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buckets, err = s.store.MonthlyTotals(gctx, userID, start)
		return err
	})
	g.Go(func() error {
		var err error
		currencies, err = s.store.Currencies(gctx, userID, core.Filter{DateFrom: &start})
		return err
	})
	if err := g.Wait(); err != nil {
		return MonthlyReport{}, fmt.Errorf("monthly report: %w", err)
	}

	r := BuildMonthly(now, DefaultMonths, buckets)
	r.CurrencyWarning = CurrencyAdvisory(currencies, "")
	return r, nil
}

// Categories builds the per-category report over the filtered transactions.
func (s *Service) Categories(ctx context.Context, userID string, f core.Filter) (CategoryReport, error) {
	var (
		rows       []core.CategoryTotal
		currencies []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.CategoryTotals(gctx, userID, f)
		return err
	})
	g.Go(func() error {
		var err error
		currencies, err = s.store.Currencies(gctx, userID, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return CategoryReport{}, fmt.Errorf("category report: %w", err)
	}

	r := BuildCategoryReport(rows)
	r.CurrencyWarning = CurrencyAdvisory(currencies, "")
	return r, nil
}

// BudgetProgress reports every budget of the user against the expenses of
// its category in its start month.
func (s *Service) BudgetProgress(ctx context.Context, userID string) ([]BudgetProgress, error) {
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.store.SumCategoryExpenses(ctx, userID, b.CategoryID, b.StartMonth, b.StartMonth.MonthEnd())
		if err != nil {
			return nil, fmt.Errorf("budget %d spending: %w", b.ID, err)
		}
		out = append(out, ComputeBudgetProgress(b, spent))
	}
	return out, nil
}

// Dashboard summarises the current month. The reads are independent and
// run concurrently.
func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	start := core.DateOf(s.now()).MonthStart()
	end := start.MonthEnd()
	month := core.Filter{DateFrom: &start, DateTo: &end}

	var (
		totals     core.KindTotals
		categories []core.CategoryTotal
		recent     []core.Transaction
		currencies []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.store.KindTotals(gctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.store.CategoryTotals(gctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.RecentTransactions(gctx, userID, dashboardRecent)
		return err
	})
	g.Go(func() error {
		var err error
		currencies, err = s.store.Currencies(gctx, userID, month)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Dashboard query failed", log.FieldOperation, log.OpReport, log.FieldUserID, userID, log.FieldError, err)
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	return Dashboard{
		Month:           start,
		IncomeTotal:     totals.Income,
		ExpenseTotal:    totals.Expense,
		NetTotal:        totals.Income.Sub(totals.Expense),
		TopCategories:   TopCategories(categories, dashboardTopCategories),
		Recent:          recent,
		CurrencyWarning: CurrencyAdvisory(currencies, "this month"),
	}, nil
}
