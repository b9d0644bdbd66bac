package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Tombstones is the deletion queue. Entries stay until the push coordinator
// gets an acknowledgment from the server; there is no dirty flag and no
// client-side expiry.
type Tombstones struct {
	db dbx.DBTX
}

// NewTombstones returns a Tombstones repository bound to the given DBTX.
func NewTombstones(db dbx.DBTX) *Tombstones {
	return &Tombstones{db: db}
}

// Add records a deletion intent.
func (t *Tombstones) Add(ctx context.Context, ts wire.Tombstone) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO tombstones (id, entity, record_id, deleted_at_epoch) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), string(ts.Entity), ts.RecordID, ts.DeletedAtEpoch)
	if err != nil {
		return fmt.Errorf("failed to add tombstone %s/%s: %w", ts.Entity, ts.RecordID, err)
	}
	return nil
}

// ListPending returns every tombstone awaiting acknowledgment, oldest first.
func (t *Tombstones) ListPending(ctx context.Context) ([]wire.Tombstone, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT entity, record_id, deleted_at_epoch FROM tombstones ORDER BY deleted_at_epoch, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstones: %w", err)
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

// Purge removes acknowledged tombstones.
func (t *Tombstones) Purge(ctx context.Context, acked []wire.Tombstone) error {
	if len(acked) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(acked)*2)
	for i, ts := range acked {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(entity = ? AND record_id = ?)")
		args = append(args, string(ts.Entity), ts.RecordID)
	}
	query := `DELETE FROM tombstones WHERE ` + sb.String()
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to purge tombstones: %w", err)
	}
	return nil
}

// Count returns the number of pending tombstones.
func (t *Tombstones) Count(ctx context.Context) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tombstones`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tombstones: %w", err)
	}
	return n, nil
}
