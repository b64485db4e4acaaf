package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ona79/facturation-app/pkg/domain"
)

const (
	numberPrefix     = "FACT"
	numberSuffixSpan = 10000

	// DefaultMaxNumberAttempts bounds the probe loop of NumberAllocator.Allocate.
	DefaultMaxNumberAttempts = 20
)

// NumberGenerator produces candidate invoice numbers FACT-YYYYMMDD-NNNN.
type NumberGenerator struct {
	mu    sync.Mutex
	rand  domain.RandomSource
	clock domain.Clock
}

// NewNumberGenerator creates a generator. Nil arguments fall back to a
// time-seeded PCG source and time.Now.
func NewNumberGenerator(src domain.RandomSource, clock domain.Clock) *NumberGenerator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.New(rand.NewPCG(now, now>>1|1))
	}
	if clock == nil {
		clock = time.Now
	}
	return &NumberGenerator{rand: src, clock: clock}
}

// Candidate returns a number for the current instant. It is not checked
// against any store.
func (g *NumberGenerator) Candidate() string {
	g.mu.Lock()
	suffix := g.rand.IntN(numberSuffixSpan)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, g.clock().Format("20060102"), suffix)
}

// NumberAllocator finds a candidate number that no stored invoice uses yet.
// The probe is not atomic with the later insert; the store's unique
// constraint stays the authority.
type NumberAllocator struct {
	gen         *NumberGenerator
	store       domain.InvoiceStore
	maxAttempts int
}

func NewNumberAllocator(gen *NumberGenerator, store domain.InvoiceStore, maxAttempts int) *NumberAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxNumberAttempts
	}
	return &NumberAllocator{gen: gen, store: store, maxAttempts: maxAttempts}
}

// Allocate returns a number unused at probe time, ErrCapacityExhausted when
// every attempt collided, or an ErrStoreUnavailable wrapped error.
func (a *NumberAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate := a.gen.Candidate()
		_, err := a.store.FindByNumber(ctx, candidate)
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", domain.Unavailable("probe invoice number", err)
		}
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrCapacityExhausted, a.maxAttempts)
}
