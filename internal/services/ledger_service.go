package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/csvimport"
	"ledger/internal/log"
	"ledger/internal/reports"
	"ledger/internal/storage"
)

// Publisher delivers change events. It is optional.
type Publisher interface {
	Publish(ctx context.Context, e *amqp.Event) error
}

// LedgerService orchestrates every user-facing ledger operation across
// SQLite, the import preview store and the event publisher. All methods
// act on behalf of one user and never reach other users' data.
type LedgerService struct {
	repo      *storage.SQLiteRepository
	previews  *csvimport.PreviewStore
	committer *csvimport.Committer
	reports   *reports.Service
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

func NewLedgerService(repo *storage.SQLiteRepository, previews *csvimport.PreviewStore, publisher Publisher, logger *log.Logger) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		previews:  previews,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
	s.committer = csvimport.NewCommitter(s.runImportTx, logger.WithComponent(log.ComponentImport))
	if repo != nil {
		s.reports = reports.NewService(repo.Queries(), logger)
	}
	return s
}

// WithClock fixes the service's notion of now, for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	if s.reports != nil {
		s.reports.WithClock(now)
	}
	return s
}

func (s *LedgerService) runImportTx(ctx context.Context, fn func(csvimport.Sink) error) error {
	return s.repo.WithinTx(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}

func (s *LedgerService) queries() *storage.Queries {
	return s.repo.Queries()
}

// Ready reports whether the database answers.
func (s *LedgerService) Ready(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("storage not configured")
	}
	return s.repo.Ping(ctx)
}

// publish never fails the caller; the change is already stored.
func (s *LedgerService) publish(ctx context.Context, e *amqp.Event) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publishing disabled, skipping event", log.FieldEvent, e.Type)
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, e.Type,
			log.FieldUserID, e.UserID,
			log.FieldError, err)
	}
}

// Close closes both storage and the publisher when it holds a connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
