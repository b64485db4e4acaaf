package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ona79/facturation-app/pkg/domain"
)

// InvoiceStore keeps invoices in process memory with a unique index on number.
type InvoiceStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Invoice
	byNumber map[string]string
}

func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{
		byID:     make(map[string]*domain.Invoice),
		byNumber: make(map[string]string),
	}
}

func (s *InvoiceStore) Insert(ctx context.Context, inv *domain.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[inv.Number]; ok {
		return domain.ErrDuplicateNumber
	}
	s.byID[inv.ID] = inv.Clone()
	s.byNumber[inv.Number] = inv.ID
	return nil
}

func (s *InvoiceStore) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InvoiceStore) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv.Clone(), nil
}

func (s *InvoiceStore) ListRecent(ctx context.Context, limit int) ([]domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]domain.Invoice, 0, len(s.byID))
	for _, inv := range s.byID {
		result = append(result, *inv.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].IssuedAt.Equal(result[j].IssuedAt) {
			return result[i].IssuedAt.After(result[j].IssuedAt)
		}
		return result[i].Number > result[j].Number
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InvoiceStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.byNumber, inv.Number)
	return true, nil
}

// Len reports how many invoices are stored.
func (s *InvoiceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
