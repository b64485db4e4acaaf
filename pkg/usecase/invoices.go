package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
)

// DefaultInvoiceListLimit caps List when no limit is configured.
const DefaultInvoiceListLimit = 100

// InvoiceQueries reads and removes issued invoices.
type InvoiceQueries struct {
	store     domain.InvoiceStore
	publisher domain.EventPublisher
	logger    *zap.Logger
	clock     domain.Clock
	maxList   int
}

func NewInvoiceQueries(store domain.InvoiceStore, publisher domain.EventPublisher, logger *zap.Logger, maxList int) *InvoiceQueries {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxList <= 0 {
		maxList = DefaultInvoiceListLimit
	}
	return &InvoiceQueries{store: store, publisher: publisher, logger: logger, clock: time.Now, maxList: maxList}
}

func (q *InvoiceQueries) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := q.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get invoice", err)
	}
	return inv, nil
}

func (q *InvoiceQueries) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	inv, err := q.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, storeErr("get invoice by number", err)
	}
	return inv, nil
}

// List returns the most recently issued invoices.
func (q *InvoiceQueries) List(ctx context.Context, limit int) ([]domain.Invoice, error) {
	if limit <= 0 || limit > q.maxList {
		limit = q.maxList
	}
	invoices, err := q.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr("list invoices", err)
	}
	return invoices, nil
}

// Delete removes an invoice. Catalog usage counts are left as they are.
func (q *InvoiceQueries) Delete(ctx context.Context, id string) error {
	inv, err := q.store.FindByID(ctx, id)
	if err != nil {
		return storeErr("get invoice", err)
	}
	ok, err := q.store.DeleteByID(ctx, id)
	if err != nil {
		return storeErr("delete invoice", err)
	}
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	if q.publisher != nil {
		event := domain.NewInvoiceEvent(domain.InvoiceDeleted, inv, q.clock())
		if err := q.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			q.logger.Warn("invoice event not published",
				zap.String("event", string(event.Type)),
				zap.String("invoice_number", inv.Number),
				zap.Error(err),
			)
		}
	}
	return nil
}
