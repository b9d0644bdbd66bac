package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Tombstones is the server's permanent deletion log. Entries are never
// purged: a device that has been offline for months still needs deletes
// from before its cursor.
type Tombstones struct {
	db dbx.DBTX
}

// NewTombstones constructs a repository bound to the given DBTX.
func NewTombstones(db dbx.DBTX) *Tombstones {
	return &Tombstones{db: db}
}

// Add records a delete. Re-deleting the same record keeps one entry and
// bumps its timestamp.
func (t *Tombstones) Add(ctx context.Context, ts wire.Tombstone, clientID string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO tombstones (id, entity, record_id, deleted_at_epoch, client_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity, record_id)
		DO UPDATE SET deleted_at_epoch = EXCLUDED.deleted_at_epoch
	`, uuid.NewString(), string(ts.Entity), ts.RecordID, ts.DeletedAtEpoch, clientID)
	if err != nil {
		return fmt.Errorf("failed to add tombstone %s/%s: %w", ts.Entity, ts.RecordID, err)
	}
	return nil
}

// SelectSince returns tombstones committed strictly after since. A
// non-empty clientScope restricts the result to that client's subtree plus
// unscoped entries.
func (t *Tombstones) SelectSince(ctx context.Context, since int64, clientScope string) ([]wire.Tombstone, error) {
	query := `SELECT entity, record_id, deleted_at_epoch FROM tombstones WHERE deleted_at_epoch > $1`
	args := []any{since}
	if clientScope != "" {
		query += ` AND (client_id = $2 OR client_id = '')`
		args = append(args, clientScope)
	}
	query += ` ORDER BY deleted_at_epoch`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	var result []wire.Tombstone
	for rows.Next() {
		var ts wire.Tombstone
		var entity string
		if err := rows.Scan(&entity, &ts.RecordID, &ts.DeletedAtEpoch); err != nil {
			return nil, err
		}
		ts.Entity = wire.Kind(entity)
		result = append(result, ts)
	}
	return result, rows.Err()
}
