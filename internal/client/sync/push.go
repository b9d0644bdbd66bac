package sync

import (
	"context"
	"fmt"

	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// runPush gathers every dirty record and pending tombstone, uploads them and
// applies the server's verdict. Dirty flags are cleared only for records the
// server acknowledged; anything skipped or rejected is marked CONFLICT and
// stays dirty. A transport failure leaves the local state untouched.
func (e *Engine) runPush(ctx context.Context) (PushOutcome, error) {
	var out PushOutcome

	req := &wire.PushRequest{}
	for _, kind := range wire.Kinds {
		rows, err := e.records.ListDirty(ctx, kind)
		if err != nil {
			return out, err
		}
		for _, row := range rows {
			rec, err := row.Record()
			if err != nil {
				return out, err
			}
			req.Add(kind, rec)
		}
	}

	tombstones, err := e.tombs.ListPending(ctx)
	if err != nil {
		return out, err
	}
	req.Deleted = tombstones

	out.Attempted = req.Total()
	if out.Attempted == 0 && len(req.Deleted) == 0 {
		out.Skipped = true
		e.logger.Debug(ctx, "nothing to push")
		return out, nil
	}

	resp, err := e.transport.Push(ctx, req)
	if err != nil {
		return out, fmt.Errorf("push request failed: %w", err)
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		records := store.NewRecords(tx)
		tombs := store.NewTombstones(tx)

		rejected := make(map[wire.Kind]map[string]bool)
		for _, pe := range resp.Errors {
			if rejected[pe.EntityType] == nil {
				rejected[pe.EntityType] = make(map[string]bool)
			}
			rejected[pe.EntityType][pe.EntityID] = true
			e.logger.Warn(ctx, "record rejected by server",
				"entity", string(pe.EntityType), "id", pe.EntityID, "message", pe.Message)
		}

		for kind, kr := range resp.Result {
			acked := append(append([]string{}, kr.Inserted...), kr.Updated...)
			if err := records.MarkSynced(ctx, kind, acked); err != nil {
				return err
			}
			out.Accepted += len(acked)

			if err := records.MarkConflict(ctx, kind, kr.Skipped); err != nil {
				return err
			}
			out.Conflicts += len(kr.Skipped)
		}

		for kind, ids := range rejected {
			flagged := make([]string, 0, len(ids))
			for id := range ids {
				flagged = append(flagged, id)
			}
			if err := records.MarkConflict(ctx, kind, flagged); err != nil {
				return err
			}
			out.Conflicts += len(flagged)
		}

		// A tombstone the server reported an error for stays queued.
		acked := make([]wire.Tombstone, 0, len(tombstones))
		for _, ts := range tombstones {
			if rejected[ts.Entity][ts.RecordID] {
				continue
			}
			acked = append(acked, ts)
		}
		if err := tombs.Purge(ctx, acked); err != nil {
			return err
		}
		out.TombstonesAcked = len(acked)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("failed to apply push response: %w", err)
	}

	e.notifier.Broadcast()
	return out, nil
}
