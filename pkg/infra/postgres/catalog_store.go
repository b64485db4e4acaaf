package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ona79/facturation-app/pkg/domain"
)

// CatalogStore persists catalog entries. name_key holds the lowercased,
// trimmed name and carries the uniqueness constraint.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

const catalogColumns = `id, name, unit_price, description, usage_count, last_used_at, created_at, updated_at`

func (s *CatalogStore) FindByName(ctx context.Context, name string) (*domain.CatalogEntry, error) {
	return s.findOne(ctx, `SELECT `+catalogColumns+` FROM catalog_entries WHERE name_key = $1`, domain.ProductKey(name))
}

func (s *CatalogStore) FindByID(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	return s.findOne(ctx, `SELECT `+catalogColumns+` FROM catalog_entries WHERE id = $1`, id)
}

func (s *CatalogStore) Create(ctx context.Context, e *domain.CatalogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_entries (id, name, name_key, unit_price, description, usage_count, last_used_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.Name, e.Key(), e.UnitPrice, e.Description, e.UsageCount, e.LastUsedAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateProduct
		}
		return err
	}
	return nil
}

func (s *CatalogStore) Update(ctx context.Context, e *domain.CatalogEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_entries
		SET name = $2, name_key = $3, unit_price = $4, description = $5,
		    usage_count = $6, last_used_at = $7, updated_at = $8
		WHERE id = $1
	`, e.ID, e.Name, e.Key(), e.UnitPrice, e.Description, e.UsageCount, e.LastUsedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateProduct
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// IncrementUsage is a single monotonic UPDATE, never read-modify-write.
func (s *CatalogStore) IncrementUsage(ctx context.Context, name string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_entries
		SET usage_count = usage_count + 1, last_used_at = $2, updated_at = now()
		WHERE name_key = $1
	`, domain.ProductKey(name), at)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *CatalogStore) Search(ctx context.Context, substring string, limit int) ([]domain.CatalogEntry, error) {
	return s.list(ctx, `
		SELECT `+catalogColumns+`
		FROM catalog_entries
		WHERE name_key LIKE $1 ESCAPE '\'
		ORDER BY usage_count DESC, last_used_at DESC, name_key
		LIMIT $2
	`, containsPattern(domain.ProductKey(substring)), limit)
}

func (s *CatalogStore) ListRecent(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	return s.list(ctx, `
		SELECT `+catalogColumns+`
		FROM catalog_entries
		ORDER BY last_used_at DESC, usage_count DESC, name_key
		LIMIT $1
	`, limit)
}

func (s *CatalogStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_entries WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *CatalogStore) findOne(ctx context.Context, query string, arg string) (*domain.CatalogEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *CatalogStore) list(ctx context.Context, query string, args ...any) ([]domain.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0, 16)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanEntry(row scanner) (*domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	if err := row.Scan(&e.ID, &e.Name, &e.UnitPrice, &e.Description, &e.UsageCount, &e.LastUsedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.LastUsedAt = e.LastUsedAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
