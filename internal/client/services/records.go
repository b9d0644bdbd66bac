// Package services is the application layer between the UI/CLI and the
// local store. Every mutation stamps sync metadata so the record is picked
// up by the next push, and broadcasts a change signal for watchers.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/wassertech/fieldsync/internal/client/deletion"
	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/policy"
	"github.com/wassertech/fieldsync/internal/wire"
)

// RecordService creates, updates, archives and deletes local records.
type RecordService struct {
	records  *store.Records
	tracker  *deletion.Tracker
	notifier *store.Notifier
	scope    policy.Scope
}

// NewRecordService wires a RecordService over the local database.
func NewRecordService(db *sql.DB, tracker *deletion.Tracker, notifier *store.Notifier, scope policy.Scope) *RecordService {
	return &RecordService{
		records:  store.NewRecords(db),
		tracker:  tracker,
		notifier: notifier,
		scope:    scope,
	}
}

// Create inserts a new record with a fresh id and queues it for push.
// The payload is a typed model (models.Client, models.Site, ...).
func (s *RecordService) Create(ctx context.Context, kind wire.Kind, payload any) (string, error) {
	if !s.scope.CanEdit(kind) {
		return "", fmt.Errorf("%w: role %s may not edit %s", common.ErrForbidden, s.scope.Role, kind)
	}

	fields, err := models.EncodeFields(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	now := models.NowEpoch()
	rec := wire.Record{
		ID:             uuid.NewString(),
		CreatedAtEpoch: now,
		UpdatedAtEpoch: now,
		Origin:         models.OriginLocal,
		Fields:         fields,
	}
	row, err := store.RowFromRecord(kind, rec, true, models.StatusQueued)
	if err != nil {
		return "", err
	}
	if err := s.records.Upsert(ctx, kind, row); err != nil {
		return "", err
	}

	s.notifier.Broadcast()
	return rec.ID, nil
}

// Update replaces the record's payload, bumps its timestamp and queues it.
func (s *RecordService) Update(ctx context.Context, kind wire.Kind, id string, payload any) error {
	if !s.scope.CanEdit(kind) {
		return fmt.Errorf("%w: role %s may not edit %s", common.ErrForbidden, s.scope.Role, kind)
	}

	existing, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%s/%s: %w", kind, id, common.ErrNotFound)
	}

	fields, err := models.EncodeFields(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	rec := wire.Record{
		ID:              id,
		CreatedAtEpoch:  existing.CreatedAtEpoch,
		UpdatedAtEpoch:  models.NowEpoch(),
		IsArchived:      existing.IsArchived,
		ArchivedAtEpoch: existing.ArchivedAtEpoch,
		Origin:          existing.Origin,
		Fields:          fields,
	}
	row, err := store.RowFromRecord(kind, rec, true, models.StatusQueued)
	if err != nil {
		return err
	}
	if err := s.records.Upsert(ctx, kind, row); err != nil {
		return err
	}

	s.notifier.Broadcast()
	return nil
}

// Archive soft-hides the record. Archived rows stay in the store and keep
// syncing; they are just filtered from default listings.
func (s *RecordService) Archive(ctx context.Context, kind wire.Kind, id string) error {
	return s.setArchived(ctx, kind, id, true)
}

// Unarchive brings an archived record back.
func (s *RecordService) Unarchive(ctx context.Context, kind wire.Kind, id string) error {
	return s.setArchived(ctx, kind, id, false)
}

func (s *RecordService) setArchived(ctx context.Context, kind wire.Kind, id string, archived bool) error {
	if !s.scope.CanEdit(kind) {
		return fmt.Errorf("%w: role %s may not edit %s", common.ErrForbidden, s.scope.Role, kind)
	}

	existing, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%s/%s: %w", kind, id, common.ErrNotFound)
	}

	now := models.NowEpoch()
	existing.UpdatedAtEpoch = now
	existing.IsArchived = archived
	if archived {
		existing.ArchivedAtEpoch = &now
	} else {
		existing.ArchivedAtEpoch = nil
	}
	existing.DirtyFlag = true
	existing.SyncStatus = models.StatusQueued

	if err := s.records.Upsert(ctx, kind, *existing); err != nil {
		return err
	}

	s.notifier.Broadcast()
	return nil
}

// Delete removes the record and queues a tombstone.
func (s *RecordService) Delete(ctx context.Context, kind wire.Kind, id string) error {
	if !s.scope.CanEdit(kind) {
		return fmt.Errorf("%w: role %s may not edit %s", common.ErrForbidden, s.scope.Role, kind)
	}
	if err := s.tracker.MarkDeleted(ctx, kind, id); err != nil {
		return err
	}
	s.notifier.Broadcast()
	return nil
}

// Get loads one record, or common.ErrNotFound.
func (s *RecordService) Get(ctx context.Context, kind wire.Kind, id string) (*store.Row, error) {
	row, err := s.records.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s/%s: %w", kind, id, common.ErrNotFound)
	}
	return row, nil
}

// List returns all live records of a kind.
func (s *RecordService) List(ctx context.Context, kind wire.Kind) ([]store.Row, error) {
	return s.records.List(ctx, kind, false)
}

// ListByParent returns the live children of a parent record.
func (s *RecordService) ListByParent(ctx context.Context, kind wire.Kind, parentID string) ([]store.Row, error) {
	return s.records.ListByParent(ctx, kind, parentID)
}

// Watch returns a channel that fires after every committed local change,
// plus a cancel function.
func (s *RecordService) Watch() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}
