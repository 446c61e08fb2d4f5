package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  original_id TEXT NOT NULL DEFAULT '',
  archived BOOLEAN NOT NULL DEFAULT FALSE,
  doc JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS deleted_orders (
  id TEXT PRIMARY KEY,
  original_id TEXT NOT NULL DEFAULT '',
  archived BOOLEAN NOT NULL DEFAULT FALSE,
  doc JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Старые записи корзины лежат под случайным id, ищем их по original_id.
		`CREATE INDEX IF NOT EXISTS idx_deleted_orders_original_id ON deleted_orders(original_id)`,
		`
CREATE TABLE IF NOT EXISTS sync_timestamps (
  type TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
