package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
)

// DefaultMaxInsertAttempts bounds how many times Issue re-allocates a number
// after the store rejected an insert as a duplicate.
const DefaultMaxInsertAttempts = 5

// LineInput is a line as received from a client. Numeric fields keep their
// textual form so that coercion errors can be reported per field.
type LineInput struct {
	Name        string
	UnitPrice   string
	Quantity    string
	Description string
}

type IssueInput struct {
	Lines    []LineInput
	Issuer   domain.Issuer
	Currency string
	Notes    string
	TaxRate  string
}

type IssuerConfig struct {
	DefaultCurrency   string
	MaxInsertAttempts int
}

// InvoiceIssuer validates input, computes totals, allocates a number and
// persists the invoice, then hands it to the catalog sync stage.
type InvoiceIssuer struct {
	store     domain.InvoiceStore
	allocator *NumberAllocator
	sync      *CatalogSync
	publisher domain.EventPublisher
	idGen     domain.IDGenerator
	clock     domain.Clock
	logger    *zap.Logger
	cfg       IssuerConfig
}

type IssuerOption func(*InvoiceIssuer)

func WithPublisher(p domain.EventPublisher) IssuerOption {
	return func(i *InvoiceIssuer) { i.publisher = p }
}

func WithClock(c domain.Clock) IssuerOption {
	return func(i *InvoiceIssuer) { i.clock = c }
}

func WithLogger(l *zap.Logger) IssuerOption {
	return func(i *InvoiceIssuer) { i.logger = l }
}

func WithIssuerConfig(cfg IssuerConfig) IssuerOption {
	return func(i *InvoiceIssuer) { i.cfg = cfg }
}

func NewInvoiceIssuer(
	store domain.InvoiceStore,
	allocator *NumberAllocator,
	sync *CatalogSync,
	idGen domain.IDGenerator,
	opts ...IssuerOption,
) *InvoiceIssuer {
	i := &InvoiceIssuer{
		store:     store,
		allocator: allocator,
		sync:      sync,
		idGen:     idGen,
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.cfg.DefaultCurrency == "" {
		i.cfg.DefaultCurrency = domain.DefaultCurrency
	}
	if i.cfg.MaxInsertAttempts <= 0 {
		i.cfg.MaxInsertAttempts = DefaultMaxInsertAttempts
	}
	return i
}

// Issue returns the persisted invoice or a single error explaining why none
// was created. Catalog and event side effects never change the outcome.
func (i *InvoiceIssuer) Issue(ctx context.Context, input IssueInput) (*domain.Invoice, error) {
	// 1. Validation happens before any store access
	lines, err := NormalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	rate, err := ParseTaxRate(input.TaxRate)
	if err != nil {
		return nil, err
	}

	// 2. Totals
	totals := domain.ComputeTotals(lines, rate)

	inv := &domain.Invoice{
		ID:         i.idGen.GenerateID(),
		Issuer:     normalizeIssuer(input.Issuer),
		Lines:      lines,
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		GrandTotal: totals.GrandTotal,
		Currency:   strings.TrimSpace(input.Currency),
		Notes:      input.Notes,
	}
	if inv.Currency == "" {
		inv.Currency = i.cfg.DefaultCurrency
	}

	// 3. Allocate and insert; the unique constraint decides collisions
	if err := i.persist(ctx, inv); err != nil {
		return nil, err
	}
	i.logger.Info("invoice issued",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.Number),
		zap.String("grand_total", inv.GrandTotal.StringFixed(2)),
		zap.Int("lines", len(inv.Lines)),
	)

	// 4. Best-effort side effects
	if i.sync != nil {
		i.sync.Dispatch(ctx, inv.Clone())
	}
	i.publish(ctx, domain.NewInvoiceEvent(domain.InvoiceIssued, inv, inv.IssuedAt))

	return inv, nil
}

func (i *InvoiceIssuer) persist(ctx context.Context, inv *domain.Invoice) error {
	for attempt := 1; attempt <= i.cfg.MaxInsertAttempts; attempt++ {
		number, err := i.allocator.Allocate(ctx)
		if err != nil {
			return err
		}
		inv.Number = number
		inv.IssuedAt = i.clock()

		err = i.store.Insert(ctx, inv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateNumber) {
			return domain.Unavailable("insert invoice", err)
		}
		i.logger.Info("invoice number taken on insert, reallocating",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("%w: %w after %d inserts", domain.ErrCapacityExhausted, domain.ErrDuplicateNumber, i.cfg.MaxInsertAttempts)
}

func (i *InvoiceIssuer) publish(ctx context.Context, event domain.InvoiceEvent) {
	if i.publisher == nil {
		return
	}
	if err := i.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		i.logger.Warn("invoice event not published",
			zap.String("event", string(event.Type)),
			zap.String("invoice_number", event.Number),
			zap.Error(err),
		)
	}
}

// Preview runs validation and the totals calculator without persisting.
func Preview(inputs []LineInput, taxRate string) ([]domain.LineItem, domain.Totals, error) {
	lines, err := NormalizeLines(inputs)
	if err != nil {
		return nil, domain.Totals{}, err
	}
	rate, err := ParseTaxRate(taxRate)
	if err != nil {
		return nil, domain.Totals{}, err
	}
	return lines, domain.ComputeTotals(lines, rate), nil
}

// NormalizeLines validates raw lines and recomputes every line total.
func NormalizeLines(inputs []LineInput) ([]domain.LineItem, error) {
	if len(inputs) == 0 {
		return nil, domain.NewValidationError(domain.ErrNoLineItems, "produits", "")
	}
	lines := make([]domain.LineItem, 0, len(inputs))
	for idx, in := range inputs {
		field := func(name string) string { return fmt.Sprintf("produits[%d].%s", idx, name) }

		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, domain.NewValidationError(domain.ErrMissingField, field("nom"), "")
		}
		price, err := parseDecimal(in.UnitPrice, field("prixUnitaire"))
		if err != nil {
			return nil, err
		}
		if price.IsNegative() {
			return nil, domain.NewValidationError(domain.ErrOutOfRange, field("prixUnitaire"), "must be >= 0")
		}
		qty, err := parseDecimal(in.Quantity, field("quantite"))
		if err != nil {
			return nil, err
		}
		if !qty.IsInteger() || qty.LessThan(decimal.NewFromInt(1)) || !qty.LessThanOrEqual(decimal.NewFromInt(maxQuantity)) {
			return nil, domain.NewValidationError(domain.ErrOutOfRange, field("quantite"), "must be a positive integer")
		}
		lines = append(lines, domain.NewLineItem(name, price, int(qty.IntPart()), in.Description))
	}
	return lines, nil
}

const maxQuantity = math.MaxInt32

// ParseTaxRate parses a percent rate; empty means 0.
func ParseTaxRate(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	rate, err := parseDecimal(raw, "tauxTVA")
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() {
		return decimal.Zero, domain.NewValidationError(domain.ErrOutOfRange, "tauxTVA", "must be >= 0")
	}
	return rate, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, domain.NewValidationError(domain.ErrMissingField, field, "")
	}
	if len(raw) > maxNumericLen {
		return decimal.Zero, domain.NewValidationError(domain.ErrOutOfRange, field, "too many characters")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(domain.ErrNotNumeric, field, fmt.Sprintf("%q", raw))
	}
	// Rounding rescales to two places, which costs 10^|exp|.
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return decimal.Zero, domain.NewValidationError(domain.ErrOutOfRange, field, fmt.Sprintf("%q has too large an exponent", raw))
	}
	if digits := len(strings.TrimPrefix(d.Coefficient().String(), "-")); digits > maxDigits {
		return decimal.Zero, domain.NewValidationError(domain.ErrOutOfRange, field, fmt.Sprintf("%q has too many digits", raw))
	}
	return d, nil
}

// Bounds on client numerics.
const (
	maxNumericLen = 40
	minExponent   = -10
	maxExponent   = 15
	maxDigits     = 20
)

func normalizeIssuer(in domain.Issuer) domain.Issuer {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = domain.DefaultIssuerName
	}
	return in
}
