// Package models holds the typed domain payloads of the field-service
// hierarchy and the per-record sync states. The sync engine itself never
// touches these types; it works on the generic record envelope. They exist
// for the application layer (services, CLI) that creates and reads records.
package models

import (
	"encoding/json"
	"time"
)

// SyncStatus is the per-record synchronization state.
type SyncStatus string

const (
	// StatusSynced means the server has acknowledged the current content.
	StatusSynced SyncStatus = "SYNCED"
	// StatusQueued means the record has local mutations awaiting a push.
	StatusQueued SyncStatus = "QUEUED"
	// StatusConflict means the server refused the record (validation failure
	// or stale version); the row stays dirty for the next cycle or manual
	// resolution.
	StatusConflict SyncStatus = "CONFLICT"
)

// Origin tags record provenance: created in the back office or in the field
// app. Used for permission decisions, never for merge ordering.
const (
	OriginServer = "CRM"
	OriginLocal  = "FIELD"
)

// NowEpoch returns the current time in milliseconds since the Unix epoch,
// the unit every *_at_epoch column uses.
func NowEpoch() int64 {
	return time.Now().UnixMilli()
}

// Client is the root of the hierarchy.
type Client struct {
	Name          string `json:"name" validate:"required"`
	LegalName     string `json:"legalName,omitempty"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	AddressFull   string `json:"addressFull,omitempty"`
	City          string `json:"city,omitempty"`
	Notes         string `json:"notes,omitempty"`
	IsCorporate   bool   `json:"isCorporate"`
	SortOrder     int    `json:"sortOrder"`
}

// Site is a serviced location belonging to a client.
type Site struct {
	ClientID   string `json:"clientId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Address    string `json:"address,omitempty"`
	OrderIndex int    `json:"orderIndex"`
	IconID     string `json:"iconId,omitempty"`
}

// Installation is a water-treatment installation at a site.
type Installation struct {
	SiteID     string `json:"siteId" validate:"required"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderIndex"`
	IconID     string `json:"iconId,omitempty"`
}

// Component is a single piece of equipment within an installation.
type Component struct {
	InstallationID string `json:"installationId" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Type           string `json:"type,omitempty"`
	TemplateID     string `json:"templateId,omitempty"`
	OrderIndex     int    `json:"orderIndex"`
	IconID         string `json:"iconId,omitempty"`
}

// MaintenanceSession is one service visit.
type MaintenanceSession struct {
	SiteID          string `json:"siteId" validate:"required"`
	InstallationID  string `json:"installationId"`
	StartedAtEpoch  int64  `json:"startedAtEpoch"`
	FinishedAtEpoch *int64 `json:"finishedAtEpoch,omitempty"`
	Technician      string `json:"technician,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// MaintenanceValue is one checklist measurement taken during a session.
type MaintenanceValue struct {
	SessionID   string   `json:"sessionId" validate:"required"`
	ComponentID string   `json:"componentId"`
	FieldKey    string   `json:"fieldKey" validate:"required"`
	ValueText   string   `json:"valueText,omitempty"`
	ValueNumber *float64 `json:"valueNumber,omitempty"`
	ValueBool   *bool    `json:"valueBool,omitempty"`
}

// ComponentTemplate describes a reusable component checklist.
type ComponentTemplate struct {
	Name              string `json:"name" validate:"required"`
	Category          string `json:"category,omitempty"`
	SortOrder         int    `json:"sortOrder"`
	DefaultParamsJSON string `json:"defaultParamsJson,omitempty"`
}

// TemplateField is one field of a component template's checklist.
type TemplateField struct {
	TemplateID       string   `json:"templateId" validate:"required"`
	Key              string   `json:"key" validate:"required"`
	Label            string   `json:"label" validate:"required"`
	Type             string   `json:"type" validate:"required"`
	Unit             string   `json:"unit,omitempty"`
	MinValue         *float64 `json:"minValue,omitempty"`
	MaxValue         *float64 `json:"maxValue,omitempty"`
	Required         bool     `json:"required"`
	IsForMaintenance bool     `json:"isForMaintenance"`
	SortOrder        int      `json:"sortOrder"`
}

// IconPack groups downloadable icons.
type IconPack struct {
	Name                   string `json:"name" validate:"required"`
	Version                int    `json:"version"`
	IsDefaultForAllClients bool   `json:"isDefaultForAllClients"`
}

// Icon is one icon's metadata; the bitmap itself is fetched separately.
type Icon struct {
	PackID   string `json:"packId" validate:"required"`
	Label    string `json:"label"`
	FileName string `json:"fileName" validate:"required"`
	MimeType string `json:"mimeType,omitempty"`
}

// UserMembership grants a user access to a client or site subtree.
type UserMembership struct {
	UserID   string `json:"userId" validate:"required"`
	Scope    string `json:"scope"`
	TargetID string `json:"targetId"`
}

// Report is the metadata of a generated maintenance report. The PDF itself
// is exchanged through presigned URLs, never through sync.
type Report struct {
	ClientID         string `json:"clientId" validate:"required"`
	SiteID           string `json:"siteId,omitempty"`
	SessionID        string `json:"sessionId,omitempty"`
	Number           string `json:"number" validate:"required"`
	Title            string `json:"title,omitempty"`
	FileKey          string `json:"fileKey,omitempty"`
	GeneratedAtEpoch int64  `json:"generatedAtEpoch"`
}

// EncodeFields marshals a typed payload into the flat field map the record
// envelope carries.
func EncodeFields(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// DecodeFields unmarshals a flat field map into a typed payload.
func DecodeFields(fields map[string]json.RawMessage, v any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
