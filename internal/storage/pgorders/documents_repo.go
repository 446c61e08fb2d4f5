package pgorders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func table(coll docstore.Collection) (string, error) {
	switch coll {
	case docstore.Active, docstore.Deleted:
		return string(coll), nil
	}
	return "", errors.Errorf("unknown collection %q", coll)
}

func (s *Storage) Get(ctx context.Context, coll docstore.Collection, id string) (*models.Order, error) {
	tbl, err := table(coll)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.db.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, tbl), id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select document")
	}
	return decode(raw)
}

func (s *Storage) List(ctx context.Context, coll docstore.Collection, q docstore.Query) ([]*models.Order, error) {
	tbl, err := table(coll)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT id, doc FROM %s WHERE 1=1`, tbl)
	args := []any{}
	if q.OriginalOrDocID != "" {
		args = append(args, q.OriginalOrDocID)
		sql += fmt.Sprintf(` AND (id = $%d OR original_id = $%d)`, len(args), len(args))
	}
	if q.ExcludeArchived {
		sql += ` AND NOT archived`
	}
	sql += ` ORDER BY id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select documents")
	}
	defer rows.Close()

	out := make([]*models.Order, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		o, err := decode(raw)
		if err != nil {
			// одна битая запись не должна прятать остальные
			slog.Warn("skip undecodable order document", "collection", string(coll), "id", id, "error", err.Error())
			continue
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows err")
	}
	return out, nil
}

func (s *Storage) Put(ctx context.Context, coll docstore.Collection, o *models.Order) error {
	return upsert(ctx, s.db, coll, o, time.Now().UTC())
}

func (s *Storage) Delete(ctx context.Context, coll docstore.Collection, id string) error {
	return remove(ctx, s.db, coll, id)
}

// Move writes o into dst and removes srcID from src in one transaction.
func (s *Storage) Move(ctx context.Context, src docstore.Collection, srcID string, dst docstore.Collection, o *models.Order) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := upsert(ctx, tx, dst, o, time.Now().UTC()); err != nil {
		return err
	}
	if err := remove(ctx, tx, src, srcID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func upsert(ctx context.Context, db execer, coll docstore.Collection, o *models.Order, now time.Time) error {
	if o.ID == "" {
		return errors.New("put document: empty id")
	}
	tbl, err := table(coll)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}

	_, err = db.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, original_id, archived, doc, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id)
DO UPDATE SET original_id = EXCLUDED.original_id, archived = EXCLUDED.archived, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
`, tbl), o.ID, o.OriginalID, o.Archived, doc, now)
	if err != nil {
		return errors.Wrap(err, "upsert document")
	}
	return nil
}

func remove(ctx context.Context, db execer, coll docstore.Collection, id string) error {
	tbl, err := table(coll)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tbl), id)
	if err != nil {
		return errors.Wrap(err, "delete document")
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func decode(raw []byte) (*models.Order, error) {
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return &o, nil
}
