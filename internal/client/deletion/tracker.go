// Package deletion records local deletes so they survive until the server
// acknowledges them. Deleting a row without a tombstone would make the
// record reappear on the next pull.
package deletion

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Tracker removes records locally while queueing tombstones for push.
type Tracker struct {
	db     *sql.DB
	logger logging.Logger
}

// NewTracker returns a Tracker over the given database.
func NewTracker(db *sql.DB, logger logging.Logger) *Tracker {
	return &Tracker{db: db, logger: logger}
}

// MarkDeleted deletes the record and writes its tombstone in one
// transaction. Deleting an id that has no local row still records the
// tombstone, so a delete observed out of band is propagated to the server.
func (t *Tracker) MarkDeleted(ctx context.Context, kind wire.Kind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if id == "" {
		return fmt.Errorf("empty record id")
	}

	err := dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		records := store.NewRecords(tx)
		tombstones := store.NewTombstones(tx)

		if err := records.Delete(ctx, kind, id); err != nil {
			return err
		}
		return tombstones.Add(ctx, wire.Tombstone{
			Entity:         kind,
			RecordID:       id,
			DeletedAtEpoch: models.NowEpoch(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, id, err)
	}

	t.logger.Debug(ctx, "record deleted locally", "entity", string(kind), "id", id)
	return nil
}
