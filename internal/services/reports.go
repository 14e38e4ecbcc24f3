package services

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/reports"
)

func (s *LedgerService) MonthlyReport(ctx context.Context, userID string) (reports.MonthlyReport, error) {
	return s.reports.Monthly(ctx, userID)
}

func (s *LedgerService) CategoryReport(ctx context.Context, userID string, f core.Filter) (reports.CategoryReport, error) {
	return s.reports.Categories(ctx, userID, f)
}

func (s *LedgerService) BudgetReport(ctx context.Context, userID string) ([]reports.BudgetProgress, error) {
	return s.reports.BudgetProgress(ctx, userID)
}

func (s *LedgerService) Dashboard(ctx context.Context, userID string) (reports.Dashboard, error) {
	return s.reports.Dashboard(ctx, userID)
}
