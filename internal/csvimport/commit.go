package csvimport

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/log"
)

// Sink is what the committer writes through while its transaction is open.
type Sink interface {
	GetOrCreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

// TxRunner runs fn inside a single storage transaction. It commits when fn
// returns nil and rolls back on any error or panic.
type TxRunner func(ctx context.Context, fn func(Sink) error) error

// SkippedRow records a row the normalizer could not read.
type SkippedRow struct {
	Row    int        `json:"row"`
	Reason SkipReason `json:"reason"`
}

// Result of a committed import.
type Result struct {
	Created int          `json:"created"`
	Skipped []SkippedRow `json:"skipped_rows,omitempty"`
}

// Committer replays preview rows into storage as one unit of work.
type Committer struct {
	runInTx TxRunner
	logger  *log.Logger
}

func NewCommitter(runInTx TxRunner, logger *log.Logger) *Committer {
	return &Committer{runInTx: runInTx, logger: logger}
}

// Commit normalizes and stores every row of p for userID. Unreadable rows
// are skipped; any row failing entity validation or storage aborts the
// whole batch and nothing is kept.
func (c *Committer) Commit(ctx context.Context, userID string, p Preview, m Mapping) (Result, error) {
	var res Result
	err := c.runInTx(ctx, func(sink Sink) error {
		res = Result{}
		for i, row := range p.Rows {
			n := i + 1
			draft, reason, ok := Normalize(p.Headers, row, m)
			if !ok {
				res.Skipped = append(res.Skipped, SkippedRow{Row: n, Reason: reason})
				continue
			}

			var category *core.Category
			if draft.CategoryName != "" {
				cat, err := sink.GetOrCreateCategory(ctx, core.Category{
					UserID: userID,
					Name:   draft.CategoryName,
					Kind:   draft.Type,
					Color:  core.DefaultImportColor,
				})
				if err != nil {
					return &RowError{Row: n, Err: err}
				}
				category = &cat
			}

			txn := draft.Transaction(userID, category)
			if err := txn.Validate(); err != nil {
				return &RowError{Row: n, Err: err}
			}
			if _, err := sink.CreateTransaction(ctx, txn); err != nil {
				return &RowError{Row: n, Err: err}
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Import rolled back",
			log.FieldOperation, log.OpCommit,
			log.FieldUserID, userID,
			log.FieldRows, len(p.Rows),
			log.FieldError, err)
		return Result{}, err
	}

	c.logger.InfoContext(ctx, "Import committed",
		log.FieldOperation, log.OpCommit,
		log.FieldUserID, userID,
		log.FieldRows, len(p.Rows),
		log.FieldCreated, res.Created,
		log.FieldSkipped, len(res.Skipped))
	return res, nil
}
