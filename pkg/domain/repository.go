package domain

import (
	"context"
	"time"
)

// InvoiceStore persists issued invoices. Number is unique.
type InvoiceStore interface {
	// Insert fails with ErrDuplicateNumber when inv.Number already exists.
	Insert(ctx context.Context, inv *Invoice) error
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindByID(ctx context.Context, id string) (*Invoice, error)
	// ListRecent returns invoices by issue date, newest first.
	ListRecent(ctx context.Context, limit int) ([]Invoice, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// CatalogStore persists catalog entries keyed by case-insensitive name.
type CatalogStore interface {
	FindByName(ctx context.Context, name string) (*CatalogEntry, error)
	FindByID(ctx context.Context, id string) (*CatalogEntry, error)
	// Create fails with ErrDuplicateProduct when the name identity exists.
	Create(ctx context.Context, entry *CatalogEntry) error
	Update(ctx context.Context, entry *CatalogEntry) error
	// IncrementUsage bumps usage_count and last_used_at. It reports false
	// without error when no entry matches.
	IncrementUsage(ctx context.Context, name string, at time.Time) (bool, error)
	// Search matches a case-insensitive substring, most used first.
	Search(ctx context.Context, substring string, limit int) ([]CatalogEntry, error)
	// ListRecent returns entries by last use, newest first.
	ListRecent(ctx context.Context, limit int) ([]CatalogEntry, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event InvoiceEvent) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, routingKey string, handler func(InvoiceEvent) error) error
}

type IDGenerator interface {
	GenerateID() string
}

// RandomSource is satisfied by *math/rand/v2.Rand.
type RandomSource interface {
	IntN(n int) int
}

type Clock func() time.Time
