package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Row is one locally stored syncable record. Domain fields live in Payload
// as raw JSON; the sync metadata is typed. ParentID duplicates the payload's
// parent reference for indexed hierarchy queries.
type Row struct {
	ID              string
	Payload         []byte
	CreatedAtEpoch  int64
	UpdatedAtEpoch  int64
	IsArchived      bool
	ArchivedAtEpoch *int64
	Origin          string
	ParentID        string
	DirtyFlag       bool
	SyncStatus      models.SyncStatus
}

// Record converts the row into its wire envelope.
func (r *Row) Record() (wire.Record, error) {
	var fields map[string]json.RawMessage
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &fields); err != nil {
			return wire.Record{}, fmt.Errorf("row %s: bad payload: %w", r.ID, err)
		}
	}
	return wire.Record{
		ID:              r.ID,
		CreatedAtEpoch:  r.CreatedAtEpoch,
		UpdatedAtEpoch:  r.UpdatedAtEpoch,
		IsArchived:      r.IsArchived,
		ArchivedAtEpoch: r.ArchivedAtEpoch,
		Origin:          r.Origin,
		Fields:          fields,
	}, nil
}

// RowFromRecord converts a wire envelope into a storable row, extracting the
// parent reference for the kind.
func RowFromRecord(kind wire.Kind, rec wire.Record, dirty bool, status models.SyncStatus) (Row, error) {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return Row{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		payload = []byte("{}")
	}
	parent := ""
	if pf := kind.ParentField(); pf != "" {
		parent = rec.StringField(pf)
	}
	return Row{
		ID:              rec.ID,
		Payload:         payload,
		CreatedAtEpoch:  rec.CreatedAtEpoch,
		UpdatedAtEpoch:  rec.UpdatedAtEpoch,
		IsArchived:      rec.IsArchived,
		ArchivedAtEpoch: rec.ArchivedAtEpoch,
		Origin:          rec.Origin,
		ParentID:        parent,
		DirtyFlag:       dirty,
		SyncStatus:      status,
	}, nil
}

const rowColumns = `id, payload, created_at_epoch, updated_at_epoch, is_archived, archived_at_epoch, origin, parent_id, dirty_flag, sync_status`

// Records gives generic access to every entity table. The kind selects the
// table; kinds are validated against the registry before being interpolated
// into SQL.
type Records struct {
	db dbx.DBTX
}

// NewRecords returns a Records repository bound to the given DBTX.
func NewRecords(db dbx.DBTX) *Records {
	return &Records{db: db}
}

func table(kind wire.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
	return string(kind), nil
}

// Upsert inserts or fully replaces a row by id.
func (r *Records) Upsert(ctx context.Context, kind wire.Kind, row Row) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + tbl + ` (` + rowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			created_at_epoch = excluded.created_at_epoch,
			updated_at_epoch = excluded.updated_at_epoch,
			is_archived = excluded.is_archived,
			archived_at_epoch = excluded.archived_at_epoch,
			origin = excluded.origin,
			parent_id = excluded.parent_id,
			dirty_flag = excluded.dirty_flag,
			sync_status = excluded.sync_status`
	_, err = r.db.ExecContext(ctx, query,
		row.ID, row.Payload, row.CreatedAtEpoch, row.UpdatedAtEpoch,
		boolToInt(row.IsArchived), row.ArchivedAtEpoch, row.Origin, row.ParentID,
		boolToInt(row.DirtyFlag), string(row.SyncStatus))
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", kind, row.ID, err)
	}
	return nil
}

// Get returns the row with the given id, or nil if it does not exist.
func (r *Records) Get(ctx context.Context, kind wire.Kind, id string) (*Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+rowColumns+` FROM `+tbl+` WHERE id = ?`, id)
	rec, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

// List returns all rows of a kind, optionally including archived ones,
// ordered by update time.
func (r *Records) List(ctx context.Context, kind wire.Kind, includeArchived bool) ([]Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + rowColumns + ` FROM ` + tbl
	if !includeArchived {
		query += ` WHERE is_archived = 0`
	}
	query += ` ORDER BY updated_at_epoch DESC, id`
	return r.queryRows(ctx, kind, query)
}

// ListByParent returns the non-archived children of a parent record.
func (r *Records) ListByParent(ctx context.Context, kind wire.Kind, parentID string) ([]Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + rowColumns + ` FROM ` + tbl + ` WHERE parent_id = ? AND is_archived = 0 ORDER BY updated_at_epoch DESC, id`
	return r.queryRows(ctx, kind, query, parentID)
}

// ListDirty returns every row with unsynced local mutations.
func (r *Records) ListDirty(ctx context.Context, kind wire.Kind) ([]Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + rowColumns + ` FROM ` + tbl + ` WHERE dirty_flag = 1 ORDER BY updated_at_epoch, id`
	return r.queryRows(ctx, kind, query)
}

// Delete removes a row. Deleting an absent row is not an error: tombstones
// may refer to rows the client never had.
func (r *Records) Delete(ctx context.Context, kind wire.Kind, id string) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, id, err)
	}
	return nil
}

// MarkSynced clears the dirty flag and sets SYNCED on the given ids.
func (r *Records) MarkSynced(ctx context.Context, kind wire.Kind, ids []string) error {
	return r.markStatus(ctx, kind, ids, `dirty_flag = 0, sync_status = 'SYNCED'`)
}

// MarkConflict sets CONFLICT on the given ids; the rows stay dirty so the
// next push retries them.
func (r *Records) MarkConflict(ctx context.Context, kind wire.Kind, ids []string) error {
	return r.markStatus(ctx, kind, ids, `sync_status = 'CONFLICT'`)
}

// RequeueConflicts flips every CONFLICT row of the kind back to QUEUED so
// the next push retries it.
func (r *Records) RequeueConflicts(ctx context.Context, kind wire.Kind) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	query := `UPDATE ` + tbl + ` SET sync_status = 'QUEUED' WHERE sync_status = 'CONFLICT'`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to requeue conflicts for %s: %w", kind, err)
	}
	return nil
}

func (r *Records) markStatus(ctx context.Context, kind wire.Kind, ids []string, set string) error {
	if len(ids) == 0 {
		return nil
	}
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `UPDATE ` + tbl + ` SET ` + set + ` WHERE id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync status for %s: %w", kind, err)
	}
	return nil
}

// StatusCounts aggregates rows by sync status across one kind.
func (r *Records) StatusCounts(ctx context.Context, kind wire.Kind) (map[models.SyncStatus]int, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM `+tbl+` GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses for %s: %w", kind, err)
	}
	defer rows.Close()

	result := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		result[models.SyncStatus(status)] = n
	}
	return result, rows.Err()
}

func (r *Records) queryRows(ctx context.Context, kind wire.Kind, query string, args ...any) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		rec, err := scanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", kind, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInto(s scannable) (*Row, error) {
	var row Row
	var isArchived, dirty int
	var archivedAt sql.NullInt64
	var status string
	if err := s.Scan(&row.ID, &row.Payload, &row.CreatedAtEpoch, &row.UpdatedAtEpoch,
		&isArchived, &archivedAt, &row.Origin, &row.ParentID, &dirty, &status); err != nil {
		return nil, err
	}
	row.IsArchived = isArchived != 0
	row.DirtyFlag = dirty != 0
	row.SyncStatus = models.SyncStatus(status)
	if archivedAt.Valid {
		row.ArchivedAtEpoch = &archivedAt.Int64
	}
	return &row, nil
}

func scanRow(r *sql.Row) (*Row, error)   { return scanInto(r) }
func scanRows(r *sql.Rows) (*Row, error) { return scanInto(r) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
