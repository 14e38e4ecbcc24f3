package services

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type TransactionInput struct {
	Type     core.Kind       `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Date     core.Date       `json:"date"`
	Category *int64          `json:"category"`
	Tags     []int64         `json:"tags"`
	Notes    string          `json:"notes"`
}

// TransactionPage is one page of a filtered listing.
type TransactionPage struct {
	Items    []core.Transaction
	Total    int64
	Page     int
	PageSize int
}

// buildTransaction resolves references and validates the resulting transaction.
func (s *LedgerService) buildTransaction(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	v := &core.ValidationError{}

	category, err := s.resolveCategory(ctx, userID, in.Category)
	if err != nil {
		if !mergeFieldErrors(v, err) {
			return core.Transaction{}, err
		}
	}
	tags, err := s.resolveTags(ctx, userID, in.Tags)
	if err != nil {
		if !mergeFieldErrors(v, err) {
			return core.Transaction{}, err
		}
	}

	kind := in.Type
	if k, err := core.ParseKind(string(in.Type)); err == nil {
		kind = k
	}
	t := core.Transaction{
		UserID:   userID,
		Type:     kind,
		Amount:   in.Amount,
		Currency: core.NormalizeCurrency(in.Currency),
		Date:     in.Date,
		Category: category,
		Tags:     tags,
		Notes:    in.Notes,
	}
	if category != nil {
		t.CategoryID = &category.ID
	}

	if err := t.Validate(); err != nil {
		mergeFieldErrors(v, err)
	}
	if err := v.OrNil(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string, f core.Filter, page core.Page) (TransactionPage, error) {
	if page.Number < 1 {
		page.Number = 1
	}
	total, err := s.queries().CountTransactions(ctx, userID, f)
	if err != nil {
		return TransactionPage{}, err
	}
	items, err := s.queries().ListTransactions(ctx, storage.ListTransactionsParams{
		UserID: userID,
		Filter: f,
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Items: items, Total: total, Page: page.Number, PageSize: page.Limit()}, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	return s.queries().GetTransaction(ctx, userID, id)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	t, err := s.buildTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err = s.repo.WithinTx(ctx, func(q *storage.Queries) error {
		saved, err := q.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		created, err = q.GetTransaction(ctx, userID, saved.ID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldUserID, userID,
		log.FieldTransactionID, created.ID,
		log.FieldKind, created.Type,
		log.FieldAmount, core.FormatAmount(created.Amount))
	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionCreated, userID, created.ID))
	return created, nil
}

// UpdateTransaction replaces every field; category and tags are checked
// again against the user.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID string, id int64, in TransactionInput) (core.Transaction, error) {
	if _, err := s.queries().GetTransaction(ctx, userID, id); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.buildTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id

	var updated core.Transaction
	err = s.repo.WithinTx(ctx, func(q *storage.Queries) error {
		var err error
		updated, err = q.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionUpdated, userID, id))
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	if err := s.queries().DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldUserID, userID, log.FieldTransactionID, id)
	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionDeleted, userID, id))
	return nil
}
