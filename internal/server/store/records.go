package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/wire"
)

// Row is one server-side syncable record. ClientID is the id of the owning
// client, derived by walking the parent chain at insert time; it drives the
// role-scoped pull filter. Catalog kinds (templates, icons) carry an empty
// ClientID and are visible to everyone.
type Row struct {
	ID              string
	Payload         []byte
	CreatedAtEpoch  int64
	UpdatedAtEpoch  int64
	IsArchived      bool
	ArchivedAtEpoch *int64
	Origin          string
	ClientID        string
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

// RowFromRecord converts a wire envelope into a storable row.
func RowFromRecord(rec wire.Record, clientID string) (Row, error) {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return Row{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		payload = []byte("{}")
	}
	return Row{
		ID:              rec.ID,
		Payload:         payload,
		CreatedAtEpoch:  rec.CreatedAtEpoch,
		UpdatedAtEpoch:  rec.UpdatedAtEpoch,
		IsArchived:      rec.IsArchived,
		ArchivedAtEpoch: rec.ArchivedAtEpoch,
		Origin:          rec.Origin,
		ClientID:        clientID,
	}, nil
}

const rowColumns = `id, payload, created_at_epoch, updated_at_epoch, is_archived, archived_at_epoch, origin, client_id`

// Records implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type Records struct {
	db dbx.DBTX
}

// NewRecords constructs a repository bound to the given DBTX.
func NewRecords(db dbx.DBTX) *Records {
	return &Records{db: db}
}

func table(kind wire.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
	return string(kind), nil
}

// Get returns the row with the given id, or nil when absent.
func (r *Records) Get(ctx context.Context, kind wire.Kind, id string) (*Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rowColumns+` FROM `+tbl+` WHERE id = $1`, id)

	result, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, id, err)
	}
	return result, nil
}

// Insert adds a new row.
func (r *Records) Insert(ctx context.Context, kind wire.Kind, row Row) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+tbl+` (`+rowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, row.ID, row.Payload, row.CreatedAtEpoch, row.UpdatedAtEpoch,
		row.IsArchived, row.ArchivedAtEpoch, row.Origin, row.ClientID)
	if err != nil {
		return fmt.Errorf("failed to insert %s/%s: %w", kind, row.ID, err)
	}
	return nil
}

// Update replaces an existing row's content by id.
func (r *Records) Update(ctx context.Context, kind wire.Kind, row Row) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE `+tbl+` SET
			payload = $2,
			updated_at_epoch = $3,
			is_archived = $4,
			archived_at_epoch = $5,
			origin = $6,
			client_id = $7
		WHERE id = $1
	`, row.ID, row.Payload, row.UpdatedAtEpoch,
		row.IsArchived, row.ArchivedAtEpoch, row.Origin, row.ClientID)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", kind, row.ID, err)
	}
	return nil
}

// SelectUpdated returns rows committed strictly after since, oldest first.
// A non-empty clientScope restricts the result to that client's subtree
// plus unscoped catalog rows.
func (r *Records) SelectUpdated(ctx context.Context, kind wire.Kind, since int64, clientScope string) ([]Row, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + rowColumns + ` FROM ` + tbl + ` WHERE updated_at_epoch > $1`
	args := []any{since}
	if clientScope != "" {
		query += ` AND (client_id = $2 OR client_id = '')`
		args = append(args, clientScope)
	}
	query += ` ORDER BY updated_at_epoch`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select updated %s: %w", kind, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		item, err := scanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", kind, err)
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

// Delete removes a row by id. Deleting an absent row is not an error.
func (r *Records) Delete(ctx context.Context, kind wire.Kind, id string) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, id, err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInto(s scannable) (*Row, error) {
	var row Row
	var archivedAt sql.NullInt64
	if err := s.Scan(&row.ID, &row.Payload, &row.CreatedAtEpoch, &row.UpdatedAtEpoch,
		&row.IsArchived, &archivedAt, &row.Origin, &row.ClientID); err != nil {
		return nil, err
	}
	if archivedAt.Valid {
		row.ArchivedAtEpoch = &archivedAt.Int64
	}
	return &row, nil
}

func scanRow(r *sql.Row) (*Row, error)   { return scanInto(r) }
func scanRows(r *sql.Rows) (*Row, error) { return scanInto(r) }
