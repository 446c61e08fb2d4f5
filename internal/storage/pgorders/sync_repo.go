package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/pkg/errors"
)

// SyncTimestamps returns the shared copy of the last-sync timestamps.
// Missing rows leave the field nil.
func (s *Storage) SyncTimestamps(ctx context.Context) (models.SyncTimestamps, error) {
	var out models.SyncTimestamps

	rows, err := s.db.Query(ctx, `SELECT type, value FROM sync_timestamps`)
	if err != nil {
		return out, errors.Wrap(err, "select sync timestamps")
	}
	defer rows.Close()

	for rows.Next() {
		var typ, value string
		if err := rows.Scan(&typ, &value); err != nil {
			return out, errors.Wrap(err, "scan sync timestamp")
		}
		st := models.SyncType(typ)
		if !st.Valid() {
			continue
		}
		v := value
		out.Set(st, &v)
	}
	if err := rows.Err(); err != nil {
		return out, errors.Wrap(err, "rows err")
	}
	return out, nil
}

func (s *Storage) SetSyncTimestamp(ctx context.Context, t models.SyncType, value string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO sync_timestamps (type, value, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (type)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, string(t), value, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "upsert sync timestamp")
	}
	return nil
}
