package services

import (
	"context"
	"errors"

	"ledger/internal/amqp"
	"ledger/internal/csvimport"
	"ledger/internal/log"
)

// previewSampleRows is how many data rows an upload preview shows.
const previewSampleRows = 10

// ImportPreview is what the user sees before choosing a mapping.
type ImportPreview struct {
	Token     string            `json:"token"`
	Headers   []string          `json:"headers"`
	Rows      [][]string        `json:"rows"`
	TotalRows int               `json:"total_rows"`
	Delimiter string            `json:"delimiter"`
	Suggested csvimport.Mapping `json:"suggested_mapping"`
	Columns   []csvimport.Field `json:"column_choices"`
}

// PreviewImport parses an upload and parks it for a later commit. A new
// upload replaces the user's previous one.
func (s *LedgerService) PreviewImport(ctx context.Context, userID string, data []byte) (ImportPreview, error) {
	p, err := csvimport.Parse(data)
	if err != nil {
		return ImportPreview{}, err
	}
	a := s.previews.Put(userID, p)

	sample := p.Rows
	if len(sample) > previewSampleRows {
		sample = sample[:previewSampleRows]
	}

	s.logger.InfoContext(ctx, "Import preview stored",
		log.FieldOperation, log.OpPreview,
		log.FieldUserID, userID,
		log.FieldPreviewToken, a.Token,
		log.FieldRows, len(p.Rows))

	return ImportPreview{
		Token:     a.Token,
		Headers:   p.Headers,
		Rows:      sample,
		TotalRows: len(p.Rows),
		Delimiter: p.DelimiterString(),
		Suggested: csvimport.SuggestMapping(p.Headers),
		Columns:   csvimport.Fields,
	}, nil
}

// CommitImport applies mapping to a parked upload. A bad mapping leaves
// the upload in place so the user can retry; otherwise the upload is
// consumed whether the commit succeeds or not.
func (s *LedgerService) CommitImport(ctx context.Context, userID, token string, raw map[string]string) (csvimport.Result, error) {
	mapping, err := csvimport.ParseMapping(raw)
	if err != nil {
		if _, gerr := s.previews.Get(userID, token); gerr != nil {
			return csvimport.Result{}, gerr
		}
		return csvimport.Result{}, err
	}

	a, err := s.previews.Take(userID, token)
	if err != nil {
		return csvimport.Result{}, err
	}

	res, err := s.committer.Commit(ctx, userID, a.Preview, mapping)
	if err != nil {
		return csvimport.Result{}, err
	}
	s.publish(ctx, amqp.NewImportCommitted(userID, res.Created))
	return res, nil
}

// AbandonImport drops a parked upload.
func (s *LedgerService) AbandonImport(ctx context.Context, userID, token string) error {
	if err := s.previews.Discard(userID, token); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Import abandoned", log.FieldOperation, log.OpAbandon, log.FieldUserID, userID, log.FieldPreviewToken, token)
	return nil
}

// ImportCSV parses and commits in one step, for non-interactive callers.
// A nil mapping means the suggested one.
func (s *LedgerService) ImportCSV(ctx context.Context, userID string, data []byte, raw map[string]string) (csvimport.Result, error) {
	p, err := csvimport.Parse(data)
	if err != nil {
		return csvimport.Result{}, err
	}

	if raw == nil {
		raw = csvimport.SuggestMapping(p.Headers).Strings()
	}
	mapping, err := csvimport.ParseMapping(raw)
	if err != nil {
		if errors.Is(err, csvimport.ErrIncompleteMapping) {
			s.logger.WarnContext(ctx, "Could not map required columns", "headers", p.Headers)
		}
		return csvimport.Result{}, err
	}

	res, err := s.committer.Commit(ctx, userID, p, mapping)
	if err != nil {
		return csvimport.Result{}, err
	}
	s.publish(ctx, amqp.NewImportCommitted(userID, res.Created))
	return res, nil
}

// PendingImports is the number of uploads waiting for a commit.
func (s *LedgerService) PendingImports() int {
	if s.previews == nil {
		return 0
	}
	return s.previews.Size()
}
