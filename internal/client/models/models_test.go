package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFields(t *testing.T) {
	site := Site{ClientID: "c1", Name: "Pump house", OrderIndex: 2}

	fields, err := EncodeFields(site)
	require.NoError(t, err)
	require.Contains(t, fields, "clientId")
	require.Contains(t, fields, "name")

	var back Site
	require.NoError(t, DecodeFields(fields, &back))
	require.Equal(t, site, back)
}

func TestEncodeFields_OmitsEmptyOptionals(t *testing.T) {
	fields, err := EncodeFields(Component{InstallationID: "i1", Name: "Softener"})
	require.NoError(t, err)
	require.NotContains(t, fields, "iconId")
	require.NotContains(t, fields, "templateId")
}
