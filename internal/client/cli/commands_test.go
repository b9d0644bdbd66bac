package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/wire"
)

func TestPayloadFor(t *testing.T) {
	p, err := payloadFor(wire.KindSites, "Plant A", "c-1")
	require.NoError(t, err)
	require.Equal(t, models.Site{ClientID: "c-1", Name: "Plant A"}, p)

	p, err = payloadFor(wire.KindClients, "ACME", "")
	require.NoError(t, err)
	require.Equal(t, models.Client{Name: "ACME"}, p)

	_, err = payloadFor(wire.KindMaintenanceValues, "x", "s-1")
	require.Error(t, err)
}

func TestNewRootCmd_HasCommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "logout", "sync", "resync", "status", "list", "add", "archive", "delete"} {
		require.True(t, names[want], "missing command %s", want)
	}
}
