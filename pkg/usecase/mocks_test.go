package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/infra/memory"
)

// scriptedRand replays vals in order, repeating the last one.
type scriptedRand struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[len(r.vals)-1]
	if r.i < len(r.vals) {
		v = r.vals[r.i]
	}
	r.i++
	return v % n
}

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) GenerateID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

func fixedClock(t time.Time) domain.Clock {
	return func() time.Time { return t }
}

// countingInvoiceStore records calls and can inject failures.
type countingInvoiceStore struct {
	*memory.InvoiceStore
	mu          sync.Mutex
	probes      int
	inserts     int
	duplicates  int
	probeErr    error
	insertErr   error
	forceDupFor map[string]bool
}

func newCountingInvoiceStore() *countingInvoiceStore {
	return &countingInvoiceStore{InvoiceStore: memory.NewInvoiceStore(), forceDupFor: map[string]bool{}}
}

func (s *countingInvoiceStore) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	s.mu.Lock()
	s.probes++
	err := s.probeErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.InvoiceStore.FindByNumber(ctx, number)
}

func (s *countingInvoiceStore) Insert(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	s.inserts++
	err := s.insertErr
	if s.forceDupFor[inv.Number] {
		err = domain.ErrDuplicateNumber
	}
	s.mu.Unlock()
	if err == nil {
		err = s.InvoiceStore.Insert(ctx, inv)
	}
	if err == domain.ErrDuplicateNumber {
		s.mu.Lock()
		s.duplicates++
		s.mu.Unlock()
	}
	return err
}

func (s *countingInvoiceStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// failingCatalog fails IncrementUsage for the listed names.
type failingCatalog struct {
	*memory.CatalogStore
	fail map[string]error
}

func (c *failingCatalog) IncrementUsage(ctx context.Context, name string, at time.Time) (bool, error) {
	if err, ok := c.fail[domain.ProductKey(name)]; ok {
		return false, err
	}
	return c.CatalogStore.IncrementUsage(ctx, name, at)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.InvoiceEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.InvoiceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) published() []domain.InvoiceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InvoiceEvent(nil), m.events...)
}
