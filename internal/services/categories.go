package services

import (
	"context"
	"errors"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type CategoryInput struct {
	Name     string    `json:"name"`
	Kind     core.Kind `json:"kind"`
	Color    string    `json:"color"`
	Archived bool      `json:"archived"`
}

// ListQuery narrows category and tag listings.
type ListQuery struct {
	Query    string
	Archived *bool
}

func (in CategoryInput) category(userID string) core.Category {
	kind := in.Kind
	if k, err := core.ParseKind(string(in.Kind)); err == nil {
		kind = k
	}
	return core.Category{
		UserID:   userID,
		Name:     strings.TrimSpace(in.Name),
		Kind:     kind,
		Color:    strings.TrimSpace(in.Color),
		Archived: in.Archived,
	}
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string, q ListQuery) ([]core.Category, error) {
	return s.queries().ListCategories(ctx, storage.ListCategoriesParams{
		UserID:   userID,
		Query:    q.Query,
		Archived: q.Archived,
	})
}

func (s *LedgerService) GetCategory(ctx context.Context, userID string, id int64) (core.Category, error) {
	return s.queries().GetCategory(ctx, userID, id)
}

func (s *LedgerService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	c := in.category(userID)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.queries().CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID,
		log.FieldCategoryID, created.ID,
		log.FieldKind, created.Kind)
	return created, nil
}

// UpdateCategory refuses a kind change that would break transactions or
// budgets already pointing at the category.
func (s *LedgerService) UpdateCategory(ctx context.Context, userID string, id int64, in CategoryInput) (core.Category, error) {
	current, err := s.queries().GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}

	c := in.category(userID)
	c.ID = id
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if c.Kind != current.Kind {
		if err := s.checkKindChange(ctx, userID, id, c.Kind); err != nil {
			return core.Category{}, err
		}
	}
	return s.queries().UpdateCategory(ctx, c)
}

func (s *LedgerService) checkKindChange(ctx context.Context, userID string, id int64, kind core.Kind) error {
	used, err := s.queries().CountTransactions(ctx, userID, core.Filter{CategoryID: &id})
	if err != nil {
		return err
	}
	if used > 0 {
		return core.NewFieldError("kind", core.ErrCategoryKindMismatch)
	}
	if kind == core.KindExpense {
		return nil
	}
	budgets, err := s.queries().ListBudgets(ctx, userID)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		if b.CategoryID == id {
			return core.NewFieldError("kind", core.ErrBudgetCategoryKind)
		}
	}
	return nil
}

// DeleteCategory leaves its transactions uncategorised and drops its budgets.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID string, id int64) error {
	if err := s.queries().DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted", log.FieldUserID, userID, log.FieldCategoryID, id)
	return nil
}

// resolveCategory loads an optional category reference for a payload.
// Unknown ids are a field error, never silently dropped.
func (s *LedgerService) resolveCategory(ctx context.Context, userID string, id *int64) (*core.Category, error) {
	if id == nil {
		return nil, nil
	}
	c, err := s.queries().GetCategory(ctx, userID, *id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.NewFieldError("category", core.ErrCategoryNotOwned)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
