package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ona79/facturation-app/pkg/domain"
)

// InvoiceStore persists invoices in Postgres. The invoices_number_key
// constraint is what makes numbers unique.
type InvoiceStore struct {
	db *sql.DB
}

func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, number, issued_at, issuer, lines, subtotal, tax_rate, tax_amount, grand_total, currency, notes`

func (s *InvoiceStore) Insert(ctx context.Context, inv *domain.Invoice) error {
	issuer, err := json.Marshal(inv.Issuer)
	if err != nil {
		return fmt.Errorf("encode issuer: %w", err)
	}
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, inv.ID, inv.Number, inv.IssuedAt, string(issuer), string(lines),
		inv.Subtotal, inv.Tax.Rate, inv.Tax.Amount, inv.GrandTotal, inv.Currency, inv.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateNumber
		}
		return err
	}
	return nil
}

func (s *InvoiceStore) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number)
}

func (s *InvoiceStore) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (s *InvoiceStore) ListRecent(ctx context.Context, limit int) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		ORDER BY issued_at DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *InvoiceStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *InvoiceStore) findOne(ctx context.Context, query string, arg string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (*domain.Invoice, error) {
	var (
		inv           domain.Invoice
		issuer, lines []byte
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.IssuedAt, &issuer, &lines,
		&inv.Subtotal, &inv.Tax.Rate, &inv.Tax.Amount, &inv.GrandTotal, &inv.Currency, &inv.Notes)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(issuer, &inv.Issuer); err != nil {
		return nil, fmt.Errorf("decode issuer of %s: %w", inv.Number, err)
	}
	if err := json.Unmarshal(lines, &inv.Lines); err != nil {
		return nil, fmt.Errorf("decode lines of %s: %w", inv.Number, err)
	}
	inv.IssuedAt = inv.IssuedAt.UTC()
	return &inv, nil
}
