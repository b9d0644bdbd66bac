package services

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/wire"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRecord checks the sync metadata and the typed payload of a pushed
// record. The payload is decoded into its model struct so required fields
// and parent references are enforced per kind.
func validateRecord(kind wire.Kind, rec wire.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("missing id")
	}
	if rec.UpdatedAtEpoch <= 0 {
		return fmt.Errorf("missing updatedAtEpoch")
	}

	payload, err := payloadModel(kind)
	if err != nil {
		return err
	}
	if err := models.DecodeFields(rec.Fields, payload); err != nil {
		return fmt.Errorf("bad payload: %v", err)
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}
	return nil
}

func payloadModel(kind wire.Kind) (any, error) {
	switch kind {
	case wire.KindClients:
		return &models.Client{}, nil
	case wire.KindSites:
		return &models.Site{}, nil
	case wire.KindInstallations:
		return &models.Installation{}, nil
	case wire.KindComponents:
		return &models.Component{}, nil
	case wire.KindMaintenanceSessions:
		return &models.MaintenanceSession{}, nil
	case wire.KindMaintenanceValues:
		return &models.MaintenanceValue{}, nil
	case wire.KindComponentTemplates:
		return &models.ComponentTemplate{}, nil
	case wire.KindTemplateFields:
		return &models.TemplateField{}, nil
	case wire.KindIconPacks:
		return &models.IconPack{}, nil
	case wire.KindIcons:
		return &models.Icon{}, nil
	case wire.KindUserMemberships:
		return &models.UserMembership{}, nil
	case wire.KindReports:
		return &models.Report{}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}
