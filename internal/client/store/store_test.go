package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/wire"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRow(id, parent string, updated int64) Row {
	payload, _ := json.Marshal(map[string]string{"name": "Pump " + id, "siteId": parent})
	return Row{
		ID:             id,
		Payload:        payload,
		CreatedAtEpoch: 1000,
		UpdatedAtEpoch: updated,
		Origin:         models.OriginLocal,
		ParentID:       parent,
		DirtyFlag:      true,
		SyncStatus:     models.StatusQueued,
	}
}

func TestRecords_UpsertGet(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	row := testRow("inst-1", "site-1", 2000)
	require.NoError(t, repo.Upsert(ctx, wire.KindInstallations, row))

	got, err := repo.Get(ctx, wire.KindInstallations, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "site-1", got.ParentID)
	require.True(t, got.DirtyFlag)
	require.Equal(t, models.StatusQueued, got.SyncStatus)

	// replacing the row keeps the id and overwrites everything else
	row.UpdatedAtEpoch = 3000
	row.DirtyFlag = false
	row.SyncStatus = models.StatusSynced
	require.NoError(t, repo.Upsert(ctx, wire.KindInstallations, row))

	got, err = repo.Get(ctx, wire.KindInstallations, "inst-1")
	require.NoError(t, err)
	require.Equal(t, int64(3000), got.UpdatedAtEpoch)
	require.False(t, got.DirtyFlag)
}

func TestRecords_GetMissing(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	got, err := repo.Get(ctx, wire.KindClients, "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRecords_UnknownKind(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	err := repo.Upsert(ctx, wire.Kind("evil; DROP TABLE clients"), testRow("x", "", 1))
	require.Error(t, err)
}

func TestRecords_ListFiltersArchived(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	live := testRow("c-1", "", 1000)
	archived := testRow("c-2", "", 1000)
	archived.IsArchived = true
	at := int64(1500)
	archived.ArchivedAtEpoch = &at

	require.NoError(t, repo.Upsert(ctx, wire.KindClients, live))
	require.NoError(t, repo.Upsert(ctx, wire.KindClients, archived))

	rows, err := repo.List(ctx, wire.KindClients, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "c-1", rows[0].ID)

	rows, err = repo.List(ctx, wire.KindClients, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRecords_ListByParent(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	require.NoError(t, repo.Upsert(ctx, wire.KindSites, testRow("s-1", "c-1", 1000)))
	require.NoError(t, repo.Upsert(ctx, wire.KindSites, testRow("s-2", "c-1", 1000)))
	require.NoError(t, repo.Upsert(ctx, wire.KindSites, testRow("s-3", "c-2", 1000)))

	rows, err := repo.ListByParent(ctx, wire.KindSites, "c-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRecords_DirtyLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	require.NoError(t, repo.Upsert(ctx, wire.KindComponents, testRow("p-1", "inst-1", 1000)))
	clean := testRow("p-2", "inst-1", 1000)
	clean.DirtyFlag = false
	clean.SyncStatus = models.StatusSynced
	require.NoError(t, repo.Upsert(ctx, wire.KindComponents, clean))

	dirty, err := repo.ListDirty(ctx, wire.KindComponents)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	require.Equal(t, "p-1", dirty[0].ID)

	require.NoError(t, repo.MarkSynced(ctx, wire.KindComponents, []string{"p-1"}))
	dirty, err = repo.ListDirty(ctx, wire.KindComponents)
	require.NoError(t, err)
	require.Empty(t, dirty)

	got, err := repo.Get(ctx, wire.KindComponents, "p-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusSynced, got.SyncStatus)
}

func TestRecords_MarkConflictKeepsDirty(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	require.NoError(t, repo.Upsert(ctx, wire.KindReports, testRow("r-1", "c-1", 1000)))
	require.NoError(t, repo.MarkConflict(ctx, wire.KindReports, []string{"r-1"}))

	got, err := repo.Get(ctx, wire.KindReports, "r-1")
	require.NoError(t, err)
	require.True(t, got.DirtyFlag)
	require.Equal(t, models.StatusConflict, got.SyncStatus)

	counts, err := repo.StatusCounts(ctx, wire.KindReports)
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.StatusConflict])
}

func TestRecords_Delete(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRecords(db)

	require.NoError(t, repo.Upsert(ctx, wire.KindClients, testRow("c-1", "", 1000)))
	require.NoError(t, repo.Delete(ctx, wire.KindClients, "c-1"))
	require.NoError(t, repo.Delete(ctx, wire.KindClients, "c-1"))

	got, err := repo.Get(ctx, wire.KindClients, "c-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRowRecordRoundTrip(t *testing.T) {
	row := testRow("inst-9", "site-4", 4000)
	rec, err := row.Record()
	require.NoError(t, err)
	require.Equal(t, "site-4", rec.StringField("siteId"))

	back, err := RowFromRecord(wire.KindInstallations, rec, row.DirtyFlag, row.SyncStatus)
	require.NoError(t, err)
	require.Equal(t, row.ID, back.ID)
	require.Equal(t, "site-4", back.ParentID)
}

func TestTombstones_AddListPurge(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewTombstones(db)

	require.NoError(t, repo.Add(ctx, wire.Tombstone{Entity: wire.KindSites, RecordID: "s-1", DeletedAtEpoch: 100}))
	require.NoError(t, repo.Add(ctx, wire.Tombstone{Entity: wire.KindClients, RecordID: "c-1", DeletedAtEpoch: 200}))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "s-1", pending[0].RecordID) // oldest first

	require.NoError(t, repo.Purge(ctx, []wire.Tombstone{{Entity: wire.KindSites, RecordID: "s-1"}}))

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "c-1", pending[0].RecordID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestTombstones_PurgeEmpty(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewTombstones(db)
	require.NoError(t, repo.Purge(ctx, nil))
}

func TestMeta_Cursor(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewMeta(db)

	cursor, err := repo.Cursor(ctx)
	require.NoError(t, err)
	require.Zero(t, cursor)

	require.NoError(t, repo.SetCursor(ctx, 1699999999000))
	cursor, err = repo.Cursor(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1699999999000), cursor)

	require.NoError(t, repo.ResetCursor(ctx))
	cursor, err = repo.Cursor(ctx)
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestMeta_Token(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewMeta(db)

	token, err := repo.Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, repo.SetToken(ctx, "bearer-abc"))
	token, err = repo.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "bearer-abc", token)

	require.NoError(t, repo.ClearToken(ctx))
	token, err = repo.Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe()
	defer cancel()

	n.Broadcast()
	n.Broadcast() // coalesced

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("expected signals to coalesce")
	default:
	}
}
