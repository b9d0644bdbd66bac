package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_JSONFlattening(t *testing.T) {
	archived := int64(500)
	rec := Record{
		ID:              "c1",
		CreatedAtEpoch:  100,
		UpdatedAtEpoch:  200,
		IsArchived:      true,
		ArchivedAtEpoch: &archived,
		Origin:          "CRM",
	}
	require.NoError(t, rec.SetField("name", "Acme Wasser GmbH"))
	require.NoError(t, rec.SetField("sortOrder", 3))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	// Domain fields must be siblings of the meta, not nested.
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	require.Equal(t, "Acme Wasser GmbH", flat["name"])
	require.EqualValues(t, 200, flat["updatedAtEpoch"])

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, rec.ID, back.ID)
	require.Equal(t, rec.UpdatedAtEpoch, back.UpdatedAtEpoch)
	require.True(t, back.IsArchived)
	require.NotNil(t, back.ArchivedAtEpoch)
	require.Equal(t, archived, *back.ArchivedAtEpoch)
	require.Equal(t, "Acme Wasser GmbH", back.StringField("name"))
	require.NotContains(t, back.Fields, "id")
	require.NotContains(t, back.Fields, "updatedAtEpoch")
}

func TestRecord_LenientArchivedFlag(t *testing.T) {
	// The legacy backend serializes booleans as 0/1.
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{`{"id":"x","isArchived":1}`, true},
		{`{"id":"x","isArchived":0}`, false},
		{`{"id":"x","isArchived":"1"}`, true},
		{`{"id":"x","isArchived":true}`, true},
	} {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(tc.in), &rec), tc.in)
		require.Equal(t, tc.want, rec.IsArchived, tc.in)
	}
}

func TestTombstone_AcceptsBothFieldGenerations(t *testing.T) {
	modern := []byte(`{"entity":"clients","id":"X","deletedAtEpoch":42}`)
	legacy := []byte(`{"tableName":"clients","recordId":"X","deletedAtEpoch":42}`)

	for _, data := range [][]byte{modern, legacy} {
		var ts Tombstone
		require.NoError(t, json.Unmarshal(data, &ts))
		require.Equal(t, KindClients, ts.Entity)
		require.Equal(t, "X", ts.RecordID)
		require.EqualValues(t, 42, ts.DeletedAtEpoch)
	}
}

func TestPushRequest_RoundTrip(t *testing.T) {
	var req PushRequest
	req.Add(KindSites, Record{ID: "s1", UpdatedAtEpoch: 10})
	req.Deleted = []Tombstone{{Entity: KindInstallations, RecordID: "i9", DeletedAtEpoch: 7}}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	// Every kind must be present, even if empty.
	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	for _, kind := range Kinds {
		require.Contains(t, flat, string(kind))
	}

	var back PushRequest
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Records[KindSites], 1)
	require.Equal(t, "s1", back.Records[KindSites][0].ID)
	require.Len(t, back.Deleted, 1)
	require.Equal(t, 2, back.Total())
}

func TestPullResponse_MissingKindArraysTolerated(t *testing.T) {
	data := []byte(`{"timestamp":123456,"clients":[{"id":"c1","updatedAtEpoch":5}],` +
		`"deleted":[{"tableName":"sites","recordId":"s2","deletedAtEpoch":9}]}`)

	var resp PullResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.EqualValues(t, 123456, resp.Timestamp)
	require.Len(t, resp.Records[KindClients], 1)
	require.Empty(t, resp.Records[KindSites])
	require.Len(t, resp.Deleted, 1)
	require.Equal(t, KindSites, resp.Deleted[0].Entity)
}

func TestPullResponse_MissingTimestampRejected(t *testing.T) {
	var resp PullResponse
	require.Error(t, json.Unmarshal([]byte(`{"clients":[]}`), &resp))
}

func TestKind_ParentField(t *testing.T) {
	require.Equal(t, "clientId", KindSites.ParentField())
	require.Equal(t, "installationId", KindComponents.ParentField())
	require.Equal(t, "", KindClients.ParentField())
	require.True(t, KindMaintenanceValues.Valid())
	require.False(t, Kind("gadgets").Valid())
}
