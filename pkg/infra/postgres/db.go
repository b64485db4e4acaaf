package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id          TEXT PRIMARY KEY,
	number      TEXT NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL,
	issuer      JSONB NOT NULL,
	lines       JSONB NOT NULL,
	subtotal    NUMERIC NOT NULL,
	tax_rate    NUMERIC NOT NULL DEFAULT 0,
	tax_amount  NUMERIC NOT NULL DEFAULT 0,
	grand_total NUMERIC NOT NULL,
	currency    TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT invoices_number_key UNIQUE (number)
);
CREATE INDEX IF NOT EXISTS invoices_issued_at_idx ON invoices (issued_at DESC, created_at DESC);

CREATE TABLE IF NOT EXISTS catalog_entries (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	unit_price   NUMERIC NOT NULL CHECK (unit_price >= 0),
	description  TEXT NOT NULL DEFAULT '',
	usage_count  INTEGER NOT NULL DEFAULT 1,
	last_used_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	CONSTRAINT catalog_entries_name_key_key UNIQUE (name_key)
);
CREATE INDEX IF NOT EXISTS catalog_entries_popularity_idx ON catalog_entries (usage_count DESC, last_used_at DESC);
CREATE INDEX IF NOT EXISTS catalog_entries_recency_idx ON catalog_entries (last_used_at DESC);
`

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
