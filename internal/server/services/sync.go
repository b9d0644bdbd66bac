package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/dbx"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/policy"
	"github.com/wassertech/fieldsync/internal/server/auth"
	"github.com/wassertech/fieldsync/internal/server/store"
	"github.com/wassertech/fieldsync/internal/wire"
)

// SyncService implements the server side of the push/pull protocol.
type SyncService struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSyncService constructs a SyncService over the given database.
func NewSyncService(db *sql.DB, logger logging.Logger) *SyncService {
	return &SyncService{db: db, logger: logger}
}

func scopeOf(claims *auth.Claims) policy.Scope {
	return policy.Scope{Role: policy.Role(claims.Role), ClientID: claims.ClientID}
}

// Push applies a device's pending mutations in one transaction. Records are
// processed in parent-before-child order with whole-record last-writer-wins:
// a record older than the stored copy is skipped, not merged. Per-record
// failures go into the errors list without aborting the batch; Success is
// true only when the list is empty.
func (s *SyncService) Push(ctx context.Context, claims *auth.Claims, req *wire.PushRequest) (*wire.PushResponse, error) {
	scope := scopeOf(claims)
	resp := &wire.PushResponse{Result: make(map[wire.Kind]wire.KindResult)}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		records := store.NewRecords(tx)
		tombstones := store.NewTombstones(tx)

		for _, kind := range wire.Kinds {
			result := resp.Result[kind]
			for _, rec := range req.Records[kind] {
				outcome, err := s.applyRecord(ctx, records, scope, kind, rec)
				switch {
				case errors.Is(err, common.ErrVersionConflict):
					result.Skipped = append(result.Skipped, rec.ID)
					continue
				case err != nil:
					resp.Errors = append(resp.Errors, wire.PushError{
						EntityType: kind, EntityID: rec.ID, Message: err.Error(),
					})
					continue
				}
				switch outcome {
				case pushInserted:
					result.Inserted = append(result.Inserted, rec.ID)
				case pushUpdated:
					result.Updated = append(result.Updated, rec.ID)
				}
			}
			resp.Result[kind] = result
		}

		for _, ts := range req.Deleted {
			if err := s.applyTombstone(ctx, records, tombstones, scope, ts); err != nil {
				resp.Errors = append(resp.Errors, wire.PushError{
					EntityType: ts.Entity, EntityID: ts.RecordID, Message: err.Error(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}

	resp.Success = len(resp.Errors) == 0
	s.logger.Info(ctx, "push applied", "user", claims.UserID,
		"records", req.Total(), "deletes", len(req.Deleted), "errors", len(resp.Errors))
	return resp, nil
}

type pushOutcome int

const (
	pushInserted pushOutcome = iota
	pushUpdated
)

func (s *SyncService) applyRecord(ctx context.Context, records *store.Records, scope policy.Scope, kind wire.Kind, rec wire.Record) (pushOutcome, error) {
	if !scope.CanEdit(kind) {
		return 0, fmt.Errorf("role %s may not modify %s", scope.Role, kind)
	}
	if err := validateRecord(kind, rec); err != nil {
		return 0, err
	}

	clientID, err := s.resolveClientID(ctx, records, kind, rec)
	if err != nil {
		return 0, err
	}
	if !scope.VisibleClient(clientID) {
		return 0, fmt.Errorf("record outside the user's client scope")
	}

	existing, err := records.Get(ctx, kind, rec.ID)
	if err != nil {
		return 0, err
	}

	row, err := store.RowFromRecord(rec, clientID)
	if err != nil {
		return 0, err
	}

	if existing == nil {
		if err := records.Insert(ctx, kind, row); err != nil {
			return 0, err
		}
		return pushInserted, nil
	}
	if rec.UpdatedAtEpoch < existing.UpdatedAtEpoch {
		return 0, common.ErrVersionConflict
	}
	row.CreatedAtEpoch = existing.CreatedAtEpoch
	if err := records.Update(ctx, kind, row); err != nil {
		return 0, err
	}
	return pushUpdated, nil
}

func (s *SyncService) applyTombstone(ctx context.Context, records *store.Records, tombstones *store.Tombstones, scope policy.Scope, ts wire.Tombstone) error {
	if ts.RecordID == "" || !ts.Entity.Valid() {
		return fmt.Errorf("malformed tombstone")
	}
	if !scope.CanEdit(ts.Entity) {
		return fmt.Errorf("role %s may not delete %s", scope.Role, ts.Entity)
	}

	clientID := ""
	existing, err := records.Get(ctx, ts.Entity, ts.RecordID)
	if err != nil {
		return err
	}
	if existing != nil {
		clientID = existing.ClientID
		if !scope.VisibleClient(clientID) {
			return fmt.Errorf("record outside the user's client scope")
		}
		if err := records.Delete(ctx, ts.Entity, ts.RecordID); err != nil {
			return err
		}
	}
	// Record the tombstone even when the row was already gone, so other
	// devices that still hold the record learn about the delete.
	return tombstones.Add(ctx, ts, clientID)
}

// resolveClientID derives the owning client of a record by walking its
// parent chain. Catalog kinds have no owner and return "".
func (s *SyncService) resolveClientID(ctx context.Context, records *store.Records, kind wire.Kind, rec wire.Record) (string, error) {
	switch kind {
	case wire.KindClients:
		return rec.ID, nil
	case wire.KindSites, wire.KindReports:
		return rec.StringField("clientId"), nil
	case wire.KindInstallations, wire.KindMaintenanceSessions:
		return s.parentClient(ctx, records, wire.KindSites, rec.StringField("siteId"))
	case wire.KindComponents:
		return s.parentClient(ctx, records, wire.KindInstallations, rec.StringField("installationId"))
	case wire.KindMaintenanceValues:
		return s.parentClient(ctx, records, wire.KindMaintenanceSessions, rec.StringField("sessionId"))
	default:
		// component_templates, component_template_fields, icon_packs,
		// icons, user_membership: shared catalog data.
		return "", nil
	}
}

func (s *SyncService) parentClient(ctx context.Context, records *store.Records, parentKind wire.Kind, parentID string) (string, error) {
	if parentID == "" {
		return "", fmt.Errorf("missing %s reference", parentKind)
	}
	parent, err := records.Get(ctx, parentKind, parentID)
	if err != nil {
		return "", err
	}
	if parent == nil {
		return "", fmt.Errorf("unknown %s %s", parentKind, parentID)
	}
	return parent.ClientID, nil
}

// Pull returns every record and tombstone committed strictly after since,
// filtered to the user's scope, plus the server timestamp the device should
// store as its next cursor. A non-empty kinds list narrows the response to
// those entity kinds. An unrestricted caller may narrow to one client's
// subtree via clientID; a restricted caller always gets its own subtree
// regardless of what it asked for.
func (s *SyncService) Pull(ctx context.Context, claims *auth.Claims, since int64, kinds []wire.Kind, clientID string) (*wire.PullResponse, error) {
	scope := scopeOf(claims)
	clientScope := clientID
	if scope.Restricted() {
		clientScope = scope.ClientID
	}
	if len(kinds) == 0 {
		kinds = wire.Kinds
	}

	resp := &wire.PullResponse{
		Timestamp: time.Now().UnixMilli(),
		Records:   make(map[wire.Kind][]wire.Record),
	}

	records := store.NewRecords(s.db)
	wanted := make(map[wire.Kind]bool, len(kinds))
	for _, kind := range kinds {
		wanted[kind] = true
	}
	for _, kind := range kinds {
		rows, err := records.SelectUpdated(ctx, kind, since, clientScope)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			rec, err := row.Record()
			if err != nil {
				return nil, err
			}
			resp.Records[kind] = append(resp.Records[kind], rec)
		}
	}

	deleted, err := store.NewTombstones(s.db).SelectSince(ctx, since, clientScope)
	if err != nil {
		return nil, err
	}
	for _, ts := range deleted {
		if wanted[ts.Entity] {
			resp.Deleted = append(resp.Deleted, ts)
		}
	}

	s.logger.Debug(ctx, "pull served", "user", claims.UserID, "since", since,
		"records", resp.Total(), "deletes", len(resp.Deleted))
	return resp, nil
}
