package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ona79/facturation-app/pkg/domain"
)

// CatalogStore keeps catalog entries in memory, unique by case-insensitive name.
type CatalogStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.CatalogEntry
	byKey map[string]string
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		byID:  make(map[string]*domain.CatalogEntry),
		byKey: make(map[string]string),
	}
}

func (s *CatalogStore) FindByName(ctx context.Context, name string) (*domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[domain.ProductKey(name)]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	e := *s.byID[id]
	return &e, nil
}

func (s *CatalogStore) FindByID(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *e
	return &c, nil
}

func (s *CatalogStore) Create(ctx context.Context, entry *domain.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.Key()
	if _, ok := s.byKey[key]; ok {
		return domain.ErrDuplicateProduct
	}
	c := *entry
	s.byID[entry.ID] = &c
	s.byKey[key] = entry.ID
	return nil
}

func (s *CatalogStore) Update(ctx context.Context, entry *domain.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[entry.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	oldKey, newKey := current.Key(), entry.Key()
	if oldKey != newKey {
		if _, taken := s.byKey[newKey]; taken {
			return domain.ErrDuplicateProduct
		}
		delete(s.byKey, oldKey)
		s.byKey[newKey] = entry.ID
	}
	c := *entry
	s.byID[entry.ID] = &c
	return nil
}

func (s *CatalogStore) IncrementUsage(ctx context.Context, name string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[domain.ProductKey(name)]
	if !ok {
		return false, nil
	}
	e := s.byID[id]
	e.UsageCount++
	e.LastUsedAt = at
	return true, nil
}

func (s *CatalogStore) Search(ctx context.Context, substring string, limit int) ([]domain.CatalogEntry, error) {
	needle := strings.ToLower(substring)
	return s.list(ctx, limit, func(e *domain.CatalogEntry) bool {
		return strings.Contains(strings.ToLower(e.Name), needle)
	}, byPopularity)
}

func (s *CatalogStore) ListRecent(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	return s.list(ctx, limit, nil, byRecency)
}

func (s *CatalogStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byKey, e.Key())
	delete(s.byID, id)
	return true, nil
}

func (s *CatalogStore) list(
	ctx context.Context,
	limit int,
	match func(*domain.CatalogEntry) bool,
	less func(a, b *domain.CatalogEntry) bool,
) ([]domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]domain.CatalogEntry, 0, len(s.byID))
	for _, e := range s.byID {
		if match == nil || match(e) {
			result = append(result, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return less(&result[i], &result[j]) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func byPopularity(a, b *domain.CatalogEntry) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.After(b.LastUsedAt)
	}
	return a.Key() < b.Key()
}

func byRecency(a, b *domain.CatalogEntry) bool {
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.After(b.LastUsedAt)
	}
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	return a.Key() < b.Key()
}
