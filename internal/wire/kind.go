// Package wire defines the JSON wire contract of the sync protocol: the
// push request/response, the pull response, the record envelope and the
// tombstone format. Both the client transport and the reference server
// marshal through this package, so the two halves cannot drift apart.
package wire

// Kind names one syncable entity collection. The string values are the
// field names used in the push/pull JSON bodies and must match the backend
// table names.
type Kind string

const (
	KindClients             Kind = "clients"
	KindSites               Kind = "sites"
	KindInstallations       Kind = "installations"
	KindComponents          Kind = "components"
	KindMaintenanceSessions Kind = "maintenance_sessions"
	KindMaintenanceValues   Kind = "maintenance_values"
	KindComponentTemplates  Kind = "component_templates"
	KindTemplateFields      Kind = "component_template_fields"
	KindIconPacks           Kind = "icon_packs"
	KindIcons               Kind = "icons"
	KindUserMemberships     Kind = "user_membership"
	KindReports             Kind = "reports"
)

// Kinds lists every entity kind in merge order: parents strictly before
// children, so a pull can insert a site before the installations that
// reference it.
var Kinds = []Kind{
	KindClients,
	KindSites,
	KindInstallations,
	KindComponents,
	KindMaintenanceSessions,
	KindMaintenanceValues,
	KindComponentTemplates,
	KindTemplateFields,
	KindIconPacks,
	KindIcons,
	KindUserMemberships,
	KindReports,
}

var parentField = map[Kind]string{
	KindSites:               "clientId",
	KindInstallations:       "siteId",
	KindComponents:          "installationId",
	KindMaintenanceSessions: "siteId",
	KindMaintenanceValues:   "sessionId",
	KindTemplateFields:      "templateId",
	KindIcons:               "packId",
	KindReports:             "clientId",
}

// Valid reports whether k is one of the known entity kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParentField returns the payload field holding the parent record id, or ""
// for root-level kinds (clients, templates, icon packs, memberships).
func (k Kind) ParentField() string {
	return parentField[k]
}
