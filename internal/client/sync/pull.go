package sync

import (
	"context"
	"fmt"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// runPull downloads everything after the cursor and merges it in one
// transaction. The cursor is advanced inside that same transaction, so a
// crash mid-merge leaves the cursor untouched and the next pull re-fetches
// the window. Re-applying a pull is idempotent.
// A non-empty kinds list narrows the download to those entity kinds. A
// narrowed pull leaves the cursor alone: the response timestamp covers only
// the requested subset, and committing it would silently skip every other
// kind's changes on the next full pull.
func (e *Engine) runPull(ctx context.Context, kinds []wire.Kind) (PullOutcome, error) {
	var out PullOutcome

	cursor, err := e.meta.Cursor(ctx)
	if err != nil {
		return out, err
	}

	resp, err := e.transport.Pull(ctx, cursor, kinds)
	if err != nil {
		return out, fmt.Errorf("pull request failed: %w", err)
	}

	// Ids present in the record lists win over tombstones in the same
	// response: the record was recreated or restored after the delete.
	present := make(map[wire.Kind]map[string]bool)
	for kind, recs := range resp.Records {
		ids := make(map[string]bool, len(recs))
		for _, rec := range recs {
			ids[rec.ID] = true
		}
		present[kind] = ids
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		records := store.NewRecords(tx)
		meta := store.NewMeta(tx)

		// Parents strictly before children.
		for _, kind := range wire.Kinds {
			for _, rec := range resp.Records[kind] {
				applied, err := mergeRecord(ctx, records, kind, rec)
				if err != nil {
					return err
				}
				if applied {
					out.Applied++
				}
			}
		}

		for _, ts := range resp.Deleted {
			deleted, err := applyTombstone(ctx, records, ts, present)
			if err != nil {
				return err
			}
			if deleted {
				out.Deleted++
			}
		}

		if len(kinds) == 0 {
			if err := meta.SetCursor(ctx, resp.Timestamp); err != nil {
				return err
			}
			out.Cursor = resp.Timestamp
		} else {
			out.Cursor = cursor
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("failed to merge pull response: %w", err)
	}

	e.notifier.Broadcast()
	return out, nil
}

// mergeRecord applies one remote record with whole-record last-writer-wins.
// The remote copy wins ties, so a record echoed back right after a push
// settles on the server's version. A dirty local row that is strictly newer
// keeps its content; a dirty row that loses on timestamp is overwritten but
// keeps its dirty marking so the local edit is still reported on the next
// push rather than silently dropped.
func mergeRecord(ctx context.Context, records *store.Records, kind wire.Kind, rec wire.Record) (bool, error) {
	local, err := records.Get(ctx, kind, rec.ID)
	if err != nil {
		return false, err
	}

	if local != nil && rec.UpdatedAtEpoch < local.UpdatedAtEpoch {
		return false, nil
	}

	dirty := false
	status := models.StatusSynced
	if local != nil && local.DirtyFlag {
		dirty = true
		status = local.SyncStatus
	}

	row, err := store.RowFromRecord(kind, rec, dirty, status)
	if err != nil {
		return false, err
	}
	if err := records.Upsert(ctx, kind, row); err != nil {
		return false, err
	}
	return true, nil
}

// applyTombstone deletes the local row a remote tombstone names. Blank or
// unknown tombstones are skipped, as are tombstones whose id also appears in
// the response's record lists. A dirty local row that is strictly newer than
// the delete survives; the next push re-submits it.
func applyTombstone(ctx context.Context, records *store.Records, ts wire.Tombstone, present map[wire.Kind]map[string]bool) (bool, error) {
	if ts.RecordID == "" || !ts.Entity.Valid() {
		return false, nil
	}
	if present[ts.Entity][ts.RecordID] {
		return false, nil
	}

	local, err := records.Get(ctx, ts.Entity, ts.RecordID)
	if err != nil {
		return false, err
	}
	if local == nil {
		return false, nil
	}
	if local.DirtyFlag && local.UpdatedAtEpoch > ts.DeletedAtEpoch {
		return false, nil
	}

	if err := records.Delete(ctx, ts.Entity, ts.RecordID); err != nil {
		return false, err
	}
	return true, nil
}
