package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

type BudgetInput struct {
	Category   int64           `json:"category"`
	Period     core.Period     `json:"period"`
	Amount     decimal.Decimal `json:"amount"`
	StartMonth core.Date       `json:"start_month"`
	Rollover   bool            `json:"rollover"`
}

// buildBudget accepts only active EXPENSE categories owned by the user.
func (s *LedgerService) buildBudget(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	v := &core.ValidationError{}

	period := in.Period
	if period == "" {
		period = core.PeriodMonth
	}
	b := core.Budget{
		UserID:     userID,
		CategoryID: in.Category,
		Period:     period,
		Amount:     in.Amount,
		StartMonth: in.StartMonth,
		Rollover:   in.Rollover,
	}

	if in.Category != 0 {
		c, err := s.queries().GetCategory(ctx, userID, in.Category)
		switch {
		case errors.Is(err, core.ErrNotFound):
			v.Add("category", core.ErrCategoryNotOwned)
		case err != nil:
			return core.Budget{}, err
		case c.Archived:
			v.Add("category", core.ErrCategoryArchived)
		default:
			b.Category = &c
		}
	}

	rejected := len(v.Fields) > 0
	if err := b.Validate(); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				// a rejected reference is reported once
				if rejected && f.Field == "category" {
					continue
				}
				v.Add(f.Field, f.Err)
			}
		}
	}
	if err := v.OrNil(); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *LedgerService) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.queries().ListBudgets(ctx, userID)
}

func (s *LedgerService) GetBudget(ctx context.Context, userID string, id int64) (core.Budget, error) {
	return s.queries().GetBudget(ctx, userID, id)
}

func (s *LedgerService) CreateBudget(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	b, err := s.buildBudget(ctx, userID, in)
	if err != nil {
		return core.Budget{}, err
	}
	created, err := s.queries().CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, err
	}
	s.logger.InfoContext(ctx, "Budget created",
		log.FieldUserID, userID,
		log.FieldBudgetID, created.ID,
		log.FieldCategoryID, created.CategoryID)
	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetCreated, userID, created.ID))
	return created, nil
}

func (s *LedgerService) UpdateBudget(ctx context.Context, userID string, id int64, in BudgetInput) (core.Budget, error) {
	if _, err := s.queries().GetBudget(ctx, userID, id); err != nil {
		return core.Budget{}, err
	}
	b, err := s.buildBudget(ctx, userID, in)
	if err != nil {
		return core.Budget{}, err
	}
	b.ID = id
	updated, err := s.queries().UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, err
	}
	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetUpdated, userID, id))
	return updated, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, userID string, id int64) error {
	if err := s.queries().DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetDeleted, userID, id))
	return nil
}
