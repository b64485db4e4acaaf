package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ona79/facturation-app/pkg/domain"
)

const (
	DefaultSearchLimit = 10
	DefaultRecentLimit = 10
	DefaultListLimit   = 50
	maxCatalogLimit    = 200
)

type UpsertInput struct {
	Name        string
	UnitPrice   string
	Description *string
}

// UpdateInput carries optional fields; nil leaves the stored value.
type UpdateInput struct {
	Name        *string
	UnitPrice   *string
	Description *string
}

// CatalogService manages the product catalog used for autocompletion.
type CatalogService struct {
	store domain.CatalogStore
	idGen domain.IDGenerator
	clock domain.Clock
}

func NewCatalogService(store domain.CatalogStore, idGen domain.IDGenerator, clock domain.Clock) *CatalogService {
	if clock == nil {
		clock = time.Now
	}
	return &CatalogService{store: store, idGen: idGen, clock: clock}
}

func (s *CatalogService) Find(ctx context.Context, name string) (*domain.CatalogEntry, error) {
	e, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, storeErr("find product", err)
	}
	return e, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get product", err)
	}
	return e, nil
}

// Search returns entries whose name contains q, most used first. A blank q
// matches nothing.
func (s *CatalogService) Search(ctx context.Context, q string, limit int) ([]domain.CatalogEntry, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.CatalogEntry{}, nil
	}
	entries, err := s.store.Search(ctx, q, clampLimit(limit, DefaultSearchLimit))
	if err != nil {
		return nil, storeErr("search products", err)
	}
	return entries, nil
}

func (s *CatalogService) Recent(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	entries, err := s.store.ListRecent(ctx, clampLimit(limit, DefaultRecentLimit))
	if err != nil {
		return nil, storeErr("list recent products", err)
	}
	return entries, nil
}

func (s *CatalogService) List(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	entries, err := s.store.ListRecent(ctx, clampLimit(limit, DefaultListLimit))
	if err != nil {
		return nil, storeErr("list products", err)
	}
	return entries, nil
}

// Upsert creates the product or, when the case-insensitive name exists,
// updates its price and description and counts one more use.
func (s *CatalogService) Upsert(ctx context.Context, in UpsertInput) (*domain.CatalogEntry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError(domain.ErrMissingField, "nom", "")
	}
	price, err := parseDecimal(in.UnitPrice, "prixUnitaire")
	if err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, domain.NewValidationError(domain.ErrOutOfRange, "prixUnitaire", "must be >= 0")
	}

	entry, err := s.upsert(ctx, name, price, in.Description)
	if errors.Is(err, domain.ErrDuplicateProduct) {
		// lost a create race; the entry exists now
		entry, err = s.upsert(ctx, name, price, in.Description)
	}
	if err != nil {
		return nil, storeErr("upsert product", err)
	}
	return entry, nil
}

func (s *CatalogService) upsert(ctx context.Context, name string, price decimal.Decimal, description *string) (*domain.CatalogEntry, error) {
	now := s.clock()
	existing, err := s.store.FindByName(ctx, name)
	switch {
	case err == nil:
		existing.UnitPrice = price
		if description != nil {
			existing.Description = *description
		}
		existing.UsageCount++
		existing.LastUsedAt = now
		existing.UpdatedAt = now
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, domain.ErrProductNotFound):
		entry := &domain.CatalogEntry{
			ID:         s.idGen.GenerateID(),
			Name:       name,
			UnitPrice:  price,
			UsageCount: 1,
			LastUsedAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if description != nil {
			entry.Description = *description
		}
		if err := s.store.Create(ctx, entry); err != nil {
			return nil, err
		}
		return entry, nil
	default:
		return nil, err
	}
}

// Update edits an entry by id without touching its usage statistics.
func (s *CatalogService) Update(ctx context.Context, id string, in UpdateInput) (*domain.CatalogEntry, error) {
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get product", err)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.NewValidationError(domain.ErrMissingField, "nom", "")
		}
		entry.Name = name
	}
	if in.UnitPrice != nil {
		price, err := parseDecimal(*in.UnitPrice, "prixUnitaire")
		if err != nil {
			return nil, err
		}
		if price.IsNegative() {
			return nil, domain.NewValidationError(domain.ErrOutOfRange, "prixUnitaire", "must be >= 0")
		}
		entry.UnitPrice = price
	}
	if in.Description != nil {
		entry.Description = *in.Description
	}
	entry.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, entry); err != nil {
		return nil, storeErr("update product", err)
	}
	return entry, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	ok, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return storeErr("delete product", err)
	}
	if !ok {
		return domain.ErrProductNotFound
	}
	return nil
}

// RecordUsage counts one use of an existing product. It never creates one.
func (s *CatalogService) RecordUsage(ctx context.Context, name string, at time.Time) (bool, error) {
	ok, err := s.store.IncrementUsage(ctx, name, at)
	if err != nil {
		return false, storeErr("record product usage", err)
	}
	return ok, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxCatalogLimit {
		return maxCatalogLimit
	}
	return limit
}

// storeErr passes domain sentinels through and marks anything else as an
// unavailable store.
func storeErr(op string, err error) error {
	if domain.IsNotFound(err) || domain.IsConflict(err) || domain.IsValidation(err) || domain.IsUnavailable(err) {
		return err
	}
	return domain.Unavailable(op, err)
}
