package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
)

const defaultReportBuffer = 64

// SyncReport is the outcome of one catalog sync run.
type SyncReport struct {
	InvoiceNumber string
	Updated       []string
	Missing       []string
	Failures      []*domain.CatalogSyncError
}

// CatalogSync bumps usage statistics of products referenced by a committed
// invoice. It never creates entries and never fails the issuance.
type CatalogSync struct {
	catalog domain.CatalogStore
	logger  *zap.Logger
	async   bool
	reports chan SyncReport
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type CatalogSyncOption func(*CatalogSync)

// WithSynchronousSync makes Dispatch run inline.
func WithSynchronousSync() CatalogSyncOption {
	return func(s *CatalogSync) { s.async = false }
}

func WithSyncLogger(l *zap.Logger) CatalogSyncOption {
	return func(s *CatalogSync) { s.logger = l }
}

// WithReportBuffer sets the capacity of the Reports channel.
func WithReportBuffer(n int) CatalogSyncOption {
	return func(s *CatalogSync) { s.reports = make(chan SyncReport, n) }
}

func NewCatalogSync(catalog domain.CatalogStore, opts ...CatalogSyncOption) *CatalogSync {
	s := &CatalogSync{
		catalog: catalog,
		logger:  zap.NewNop(),
		async:   true,
		reports: make(chan SyncReport, defaultReportBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reports delivers one SyncReport per dispatched invoice. Reports are dropped
// when nobody drains the channel and its buffer is full.
func (s *CatalogSync) Reports() <-chan SyncReport {
	return s.reports
}

// Dispatch starts the sync for inv. The request context's cancellation is
// not inherited: the invoice is already committed.
func (s *CatalogSync) Dispatch(ctx context.Context, inv *domain.Invoice) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("catalog sync closed, skipping", zap.String("invoice_number", inv.Number))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if !s.async {
		defer s.wg.Done()
		s.run(ctx, inv)
		return
	}
	go func() {
		defer s.wg.Done()
		s.run(ctx, inv)
	}()
}

// Wait blocks until every dispatched sync has finished.
func (s *CatalogSync) Wait() {
	s.wg.Wait()
}

// Close stops accepting dispatches, waits for in-flight syncs and closes
// Reports. It is safe to call more than once.
func (s *CatalogSync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	close(s.reports)
}

func (s *CatalogSync) run(ctx context.Context, inv *domain.Invoice) {
	report := SyncReport{InvoiceNumber: inv.Number}
	for _, l := range inv.Lines {
		found, err := s.catalog.IncrementUsage(ctx, l.Name, inv.IssuedAt)
		switch {
		case err != nil:
			syncErr := &domain.CatalogSyncError{Product: l.Name, Err: err}
			report.Failures = append(report.Failures, syncErr)
			s.logger.Warn("catalog sync failed",
				zap.String("invoice_number", inv.Number),
				zap.String("product", l.Name),
				zap.Error(err),
			)
		case found:
			report.Updated = append(report.Updated, l.Name)
		default:
			report.Missing = append(report.Missing, l.Name)
		}
	}
	s.logger.Debug("catalog sync done",
		zap.String("invoice_number", inv.Number),
		zap.Int("updated", len(report.Updated)),
		zap.Int("missing", len(report.Missing)),
		zap.Int("failed", len(report.Failures)),
	)

	select {
	case s.reports <- report:
	default:
	}
}
