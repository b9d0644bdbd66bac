// Package policy maps a user's role onto what they may see and mutate. The
// server enforces these rules on push and pull; the field app applies the
// same checks locally so the UI cannot queue mutations the push would
// reject anyway.
package policy

import "github.com/wassertech/fieldsync/internal/wire"

// Role is the membership role carried in the session.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEngineer Role = "ENGINEER"
	RoleClient   Role = "CLIENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEngineer, RoleClient:
		return true
	}
	return false
}

// Scope describes what slice of the hierarchy a user sees. A zero ClientID
// with an unrestricted role means everything.
type Scope struct {
	Role     Role
	ClientID string
}

// Restricted reports whether the scope is limited to a single client
// subtree. Only the CLIENT role is restricted; ADMIN and ENGINEER see the
// full dataset.
func (s Scope) Restricted() bool {
	return s.Role == RoleClient && s.ClientID != ""
}

// CanEdit reports whether the role may create, update or delete records of
// the given kind. CLIENT users are read-only except for reports; template
// and icon catalogs are back-office data that only admins manage.
func (s Scope) CanEdit(kind wire.Kind) bool {
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleEngineer:
		switch kind {
		case wire.KindComponentTemplates, wire.KindTemplateFields,
			wire.KindIconPacks, wire.KindIcons, wire.KindUserMemberships:
			return false
		}
		return true
	case RoleClient:
		return kind == wire.KindReports
	}
	return false
}

// VisibleClient reports whether records under the given client id are
// visible to the scope.
func (s Scope) VisibleClient(clientID string) bool {
	if !s.Restricted() {
		return true
	}
	return clientID == s.ClientID
}
