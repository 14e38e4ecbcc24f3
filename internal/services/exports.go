package services

import (
	"context"
	"io"

	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// ExportPreview returns the first rows an export would contain and the
// full match count.
func (s *LedgerService) ExportPreview(ctx context.Context, userID string, f core.Filter) ([]core.Transaction, int64, error) {
	total, err := s.queries().CountTransactions(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.queries().ListTransactions(ctx, storage.ListTransactionsParams{
		UserID: userID,
		Filter: f,
		Limit:  export.PreviewRows,
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExportCSV writes every matching transaction to w, newest first, and
// returns how many were written.
func (s *LedgerService) ExportCSV(ctx context.Context, userID string, f core.Filter, w io.Writer) (int, error) {
	txns, err := s.queries().ListTransactions(ctx, storage.ListTransactionsParams{UserID: userID, Filter: f})
	if err != nil {
		return 0, err
	}
	if err := export.WriteAll(w, txns); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "Transactions exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldOperation, log.OpExport,
		log.FieldUserID, userID,
		log.FieldRows, len(txns))
	return len(txns), nil
}

// ExportFilename names an export made now.
func (s *LedgerService) ExportFilename() string {
	return export.Filename(s.now())
}
