package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/infra/memory"
)

var issueTime = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

type issuerFixture struct {
	store     *countingInvoiceStore
	catalog   domain.CatalogStore
	sync      *CatalogSync
	publisher *mockPublisher
	issuer    *InvoiceIssuer
}

func newIssuerFixture(t *testing.T, src domain.RandomSource, catalog domain.CatalogStore) *issuerFixture {
	t.Helper()
	if src == nil {
		src = &scriptedRand{vals: []int{1, 2, 3, 4, 5, 6, 7, 8, 9}}
	}
	if catalog == nil {
		catalog = memory.NewCatalogStore()
	}
	f := &issuerFixture{
		store:     newCountingInvoiceStore(),
		catalog:   catalog,
		publisher: &mockPublisher{},
	}
	f.sync = NewCatalogSync(catalog, WithSynchronousSync())
	gen := NewNumberGenerator(src, fixedClock(issueTime))
	f.issuer = NewInvoiceIssuer(
		f.store,
		NewNumberAllocator(gen, f.store, 10),
		f.sync,
		&seqIDs{},
		WithClock(fixedClock(issueTime)),
		WithPublisher(f.publisher),
	)
	return f
}

func seedProduct(t *testing.T, catalog domain.CatalogStore, id, name string, usage int, last time.Time) {
	t.Helper()
	require.NoError(t, catalog.Create(context.Background(), &domain.CatalogEntry{
		ID:         id,
		Name:       name,
		UnitPrice:  decimal.NewFromInt(1000),
		UsageCount: usage,
		LastUsedAt: last,
	}))
}

func TestIssueScenarioA(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)

	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "3"}},
	})
	require.NoError(t, err)

	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, inv.Tax.Amount.IsZero())
	assert.True(t, inv.GrandTotal.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "FACT-20261014-0001", inv.Number)
	assert.Equal(t, domain.DefaultCurrency, inv.Currency)
	assert.Equal(t, domain.DefaultIssuerName, inv.Issuer.Name)
	assert.True(t, inv.IssuedAt.Equal(issueTime))
	assert.Regexp(t, numberPattern, inv.Number)

	stored, err := f.store.FindByNumber(context.Background(), inv.Number)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, stored.ID)
}

func TestIssueScenarioB(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)

	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines:   []LineInput{{Name: "Table", UnitPrice: "2500.555", Quantity: "2"}},
		TaxRate: "18",
	})
	require.NoError(t, err)

	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "5001.11", inv.Lines[0].LineTotal.String())
	assert.Equal(t, "5001.11", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "900.20", inv.Tax.Amount.StringFixed(2))
	assert.Equal(t, "5901.31", inv.GrandTotal.StringFixed(2))
	assert.Equal(t, "18", inv.Tax.Rate.String())
}

// Both requests pass the uniqueness probe for the same candidate before
// either inserts; the loser must reallocate.
func TestIssueScenarioCConcurrentCollision(t *testing.T) {
	store := &racyStore{countingInvoiceStore: newCountingInvoiceStore()}
	store.gate.Add(2)
	gen := NewNumberGenerator(&scriptedRand{vals: []int{42, 42, 7}}, fixedClock(issueTime))
	issuer := NewInvoiceIssuer(store, NewNumberAllocator(gen, store, 10), nil, &seqIDs{},
		WithClock(fixedClock(issueTime)))

	var wg sync.WaitGroup
	results := make([]*domain.Invoice, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = issuer.Issue(context.Background(), IssueInput{
				Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	numbers := []string{results[0].Number, results[1].Number}
	assert.ElementsMatch(t, []string{"FACT-20261014-0042", "FACT-20261014-0007"}, numbers)
	assert.Equal(t, 1, store.duplicates)
	assert.Equal(t, 2, store.Len())
}

type racyStore struct {
	*countingInvoiceStore
	gate  sync.WaitGroup
	calls atomic.Int32
}

func (s *racyStore) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	if s.calls.Add(1) <= 2 {
		s.gate.Done()
		s.gate.Wait()
	}
	return s.countingInvoiceStore.FindByNumber(ctx, number)
}

func TestIssueScenarioDEmptyLines(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)

	_, err := f.issuer.Issue(context.Background(), IssueInput{})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
	assert.Zero(t, f.store.writes())
	assert.Zero(t, f.store.probes)
	assert.Empty(t, f.publisher.published())
}

func TestIssueValidation(t *testing.T) {
	tests := []struct {
		name    string
		lines   []LineInput
		rate    string
		wantErr error
		field   string
	}{
		{"missing name", []LineInput{{UnitPrice: "1", Quantity: "1"}}, "", domain.ErrMissingField, "produits[0].nom"},
		{"missing price", []LineInput{{Name: "A", Quantity: "1"}}, "", domain.ErrMissingField, "produits[0].prixUnitaire"},
		{"missing quantity", []LineInput{{Name: "A", UnitPrice: "1"}}, "", domain.ErrMissingField, "produits[0].quantite"},
		{"non numeric price", []LineInput{{Name: "A", UnitPrice: "cher", Quantity: "1"}}, "", domain.ErrNotNumeric, "produits[0].prixUnitaire"},
		{"negative price", []LineInput{{Name: "A", UnitPrice: "-1", Quantity: "1"}}, "", domain.ErrOutOfRange, "produits[0].prixUnitaire"},
		{"zero quantity", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "0"}}, "", domain.ErrOutOfRange, "produits[0].quantite"},
		{"fractional quantity", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1.5"}}, "", domain.ErrOutOfRange, "produits[0].quantite"},
		{"second line bad", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1"}, {Name: " ", UnitPrice: "1", Quantity: "1"}}, "", domain.ErrMissingField, "produits[1].nom"},
		{"non numeric tax", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1"}}, "dix", domain.ErrNotNumeric, "tauxTVA"},
		{"negative tax", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1"}}, "-5", domain.ErrOutOfRange, "tauxTVA"},
		{"huge price exponent", []LineInput{{Name: "A", UnitPrice: "1e99999999", Quantity: "1"}}, "", domain.ErrOutOfRange, "produits[0].prixUnitaire"},
		{"tiny price exponent", []LineInput{{Name: "A", UnitPrice: "1e-99999999", Quantity: "1"}}, "", domain.ErrOutOfRange, "produits[0].prixUnitaire"},
		{"huge quantity exponent", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1e99999999"}}, "", domain.ErrOutOfRange, "produits[0].quantite"},
		{"tiny tax exponent", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1"}}, "1e-99999999", domain.ErrOutOfRange, "tauxTVA"},
		{"huge tax exponent", []LineInput{{Name: "A", UnitPrice: "1", Quantity: "1"}}, "5E+99999999", domain.ErrOutOfRange, "tauxTVA"},
		{"too many digits", []LineInput{{Name: "A", UnitPrice: "123456789012345678901234", Quantity: "1"}}, "", domain.ErrOutOfRange, "produits[0].prixUnitaire"},
		{"overlong price", []LineInput{{Name: "A", UnitPrice: "0000000000000000000000000000000000000000001", Quantity: "1"}}, "", domain.ErrOutOfRange, "produits[0].prixUnitaire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIssuerFixture(t, nil, nil)
			_, err := f.issuer.Issue(context.Background(), IssueInput{Lines: tt.lines, TaxRate: tt.rate})

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, f.store.writes())
		})
	}
}

func TestIssueTwiceGivesDistinctNumbers(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)
	input := IssueInput{
		Lines:   []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "3"}},
		Issuer:  domain.Issuer{Name: "Boutique Awa"},
		TaxRate: "18",
	}

	first, err := f.issuer.Issue(context.Background(), input)
	require.NoError(t, err)
	second, err := f.issuer.Issue(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Number, second.Number)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.GrandTotal.Equal(second.GrandTotal))
	assert.Equal(t, "Boutique Awa", second.Issuer.Name)
}

func TestIssueUpdatesExistingProductsOnly(t *testing.T) {
	catalog := memory.NewCatalogStore()
	before := issueTime.Add(-72 * time.Hour)
	seedProduct(t, catalog, "p1", "Chair", 4, before)
	f := newIssuerFixture(t, nil, catalog)

	_, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{
			{Name: "CHAIR", UnitPrice: "1000", Quantity: "2"},
			{Name: "Lamp", UnitPrice: "500", Quantity: "1"},
		},
	})
	require.NoError(t, err)

	chair, err := catalog.FindByName(context.Background(), "chair")
	require.NoError(t, err)
	assert.Equal(t, 5, chair.UsageCount)
	assert.True(t, chair.LastUsedAt.Equal(issueTime))

	_, err = catalog.FindByName(context.Background(), "Lamp")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	report := <-f.sync.Reports()
	assert.Equal(t, []string{"CHAIR"}, report.Updated)
	assert.Equal(t, []string{"Lamp"}, report.Missing)
	assert.Empty(t, report.Failures)
}

func TestIssueCatalogFailureIsSwallowed(t *testing.T) {
	catalog := &failingCatalog{
		CatalogStore: memory.NewCatalogStore(),
		fail:         map[string]error{"chair": errors.New("catalog down")},
	}
	seedProduct(t, catalog, "p1", "Chair", 1, issueTime)
	f := newIssuerFixture(t, nil, catalog)

	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, inv)

	report := <-f.sync.Reports()
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Chair", report.Failures[0].Product)
	assert.Equal(t, inv.Number, report.InvoiceNumber)
}

func TestIssueRetriesDuplicateOnInsert(t *testing.T) {
	f := newIssuerFixture(t, &scriptedRand{vals: []int{11, 12}}, nil)
	f.store.forceDupFor["FACT-20261014-0011"] = true

	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "FACT-20261014-0012", inv.Number)
	assert.Equal(t, 1, f.store.duplicates)
	assert.Equal(t, 2, f.store.writes())
}

func TestIssueGivesUpAfterInsertBudget(t *testing.T) {
	f := newIssuerFixture(t, &scriptedRand{vals: []int{11}}, nil)
	f.store.forceDupFor["FACT-20261014-0011"] = true

	_, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)
	assert.ErrorIs(t, err, domain.ErrDuplicateNumber)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, DefaultMaxInsertAttempts, f.store.writes())
	assert.Empty(t, f.publisher.published())
}

func TestIssueStoreUnavailable(t *testing.T) {
	catalog := memory.NewCatalogStore()
	seedProduct(t, catalog, "p1", "Chair", 1, issueTime.Add(-time.Hour))
	f := newIssuerFixture(t, nil, catalog)
	f.store.insertErr = errors.New("connection reset by peer")

	_, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Zero(t, f.store.Len())

	chair, _ := catalog.FindByName(context.Background(), "Chair")
	assert.Equal(t, 1, chair.UsageCount)
	assert.Empty(t, f.publisher.published())
}

func TestIssuePublishesEvent(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)
	f.publisher.err = errors.New("broker gone")

	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines:    []LineInput{{Name: "Chair", UnitPrice: "1000", Quantity: "1"}},
		Currency: "EUR",
	})
	require.NoError(t, err)

	events := f.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.InvoiceIssued, events[0].Type)
	assert.Equal(t, inv.Number, events[0].Number)
	assert.Equal(t, "EUR", events[0].Currency)
}

func TestIssueKeepsLineOrder(t *testing.T) {
	f := newIssuerFixture(t, nil, nil)
	inv, err := f.issuer.Issue(context.Background(), IssueInput{
		Lines: []LineInput{
			{Name: "Zèbre", UnitPrice: "1", Quantity: "1"},
			{Name: "Ananas", UnitPrice: "2", Quantity: "1", Description: "bio"},
			{Name: "Mangue", UnitPrice: "3", Quantity: "1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 3)
	assert.Equal(t, "Zèbre", inv.Lines[0].Name)
	assert.Equal(t, "Ananas", inv.Lines[1].Name)
	assert.Equal(t, "bio", inv.Lines[1].Description)
	assert.Equal(t, "Mangue", inv.Lines[2].Name)
}

func TestPreview(t *testing.T) {
	lines, totals, err := Preview([]LineInput{{Name: "Table", UnitPrice: "2500.555", Quantity: "2"}}, "18")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "5901.31", totals.GrandTotal.StringFixed(2))

	_, _, err = Preview(nil, "")
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
}
